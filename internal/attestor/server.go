package attestor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// Request asks for one attestation. ItemID is a decimal string so callers
// never lose precision to JSON numbers.
type Request struct {
	Collection       string `json:"collection"`
	ItemID           string `json:"item_id"`
	Flagged          bool   `json:"flagged"`
	LastTransferTime int64  `json:"last_transfer_time"`
}

// Response carries the signed attestation, or an error message.
type Response struct {
	ID        string `json:"id,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Server serves attestation requests over a Unix Domain Socket with
// newline-delimited JSON framing. Only local, same-host callers (the
// oracle data pipeline) are expected.
type Server struct {
	session    *Session
	listener   net.Listener
	socketPath string
}

// NewServer binds the attestation service to the given UDS path.
func NewServer(socketPath string, session *Session) (*Server, error) {
	// Ensure the socket directory exists.
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	// Remove any stale socket file from a previous run.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on unix socket %s: %w", socketPath, err)
	}

	// Restrict socket permissions to owner only.
	if err := os.Chmod(socketPath, 0o600); err != nil {
		lis.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	return &Server{
		session:    session,
		listener:   lis,
		socketPath: socketPath,
	}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		go s.handle(conn)
	}
}

// Close stops the listener and removes the socket file.
func (s *Server) Close() {
	s.listener.Close()
	os.Remove(s.socketPath)
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if err != io.EOF {
				log.Printf("attestor: decode request: %v", err)
			}
			return
		}
		if err := enc.Encode(s.respond(&req)); err != nil {
			log.Printf("attestor: encode response: %v", err)
			return
		}
	}
}

func (s *Server) respond(req *Request) Response {
	if !common.IsHexAddress(req.Collection) {
		return Response{Error: "invalid collection address"}
	}
	itemID, ok := new(big.Int).SetString(req.ItemID, 10)
	if !ok || itemID.Sign() < 0 {
		return Response{Error: "invalid item id"}
	}

	att, err := s.session.Attest(common.HexToAddress(req.Collection), itemID, req.Flagged, req.LastTransferTime)
	if err != nil {
		return Response{Error: err.Error()}
	}

	return Response{
		ID:        att.ID.Hex(),
		Payload:   hex.EncodeToString(att.Payload),
		Timestamp: att.Timestamp,
		Signature: hex.EncodeToString(att.Signature),
	}
}
