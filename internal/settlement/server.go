package settlement

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// Admin operations accepted over the operator socket.
const (
	OpCancelAll    = "cancel-all"
	OpCancelOrders = "cancel-orders"
	OpCancelSubset = "cancel-subsets"
)

// AdminRequest is one operator command: bump a user's direction counters,
// or cancel specific order or subset nonces.
type AdminRequest struct {
	Op     string   `json:"op"`
	User   string   `json:"user"`
	Nonces []uint64 `json:"nonces,omitempty"`
}

// AdminResponse reports the new counters for cancel-all, or an error.
type AdminResponse struct {
	AskNonce uint64 `json:"ask_nonce,omitempty"`
	BidNonce uint64 `json:"bid_nonce,omitempty"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// AdminServer exposes the engine's cancellation endpoints over a Unix
// Domain Socket with newline-delimited JSON framing. Only local, same-host
// operators are expected; trade execution stays off this surface.
type AdminServer struct {
	engine     *Engine
	listener   net.Listener
	socketPath string
}

// NewAdminServer binds the operator surface to the given UDS path.
func NewAdminServer(socketPath string, engine *Engine) (*AdminServer, error) {
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

	return &AdminServer{
		engine:     engine,
		listener:   lis,
		socketPath: socketPath,
	}, nil
}

// Serve accepts connections until the listener is closed.
func (s *AdminServer) Serve() error {
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
func (s *AdminServer) Close() {
	s.listener.Close()
	os.Remove(s.socketPath)
}

func (s *AdminServer) handle(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req AdminRequest
		if err := dec.Decode(&req); err != nil {
			if err != io.EOF {
				log.Printf("settlement: decode admin request: %v", err)
			}
			return
		}
		if err := enc.Encode(s.respond(&req)); err != nil {
			log.Printf("settlement: encode admin response: %v", err)
			return
		}
	}
}

func (s *AdminServer) respond(req *AdminRequest) AdminResponse {
	if !common.IsHexAddress(req.User) {
		return AdminResponse{Error: "invalid user address"}
	}
	user := common.HexToAddress(req.User)

	switch req.Op {
	case OpCancelAll:
		ask, bid := s.engine.CancelAllOrders(user)
		return AdminResponse{AskNonce: ask, BidNonce: bid, OK: true}
	case OpCancelOrders:
		if err := s.engine.CancelOrderNonces(user, req.Nonces); err != nil {
			return AdminResponse{Error: err.Error()}
		}
		return AdminResponse{OK: true}
	case OpCancelSubset:
		if err := s.engine.CancelSubsetNonces(user, req.Nonces); err != nil {
			return AdminResponse{Error: err.Error()}
		}
		return AdminResponse{OK: true}
	default:
		return AdminResponse{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}
