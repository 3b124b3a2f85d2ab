package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"PeerTasks/internal/service"

	"github.com/google/uuid"
)

// Options configures the RPC service endpoint.
type Options struct {
	ListenAddr         string // host:port to bind, e.g. ":9876"
	Token              string // shared secret; empty disables auth
	PublicAddr         string // advertised address override
	AnnounceFile       string // optional discovery file path
	WaitPollInterval   time.Duration
	DefaultWaitTimeout time.Duration
}

// Service exposes submit/get/wait over the stream protocol by forwarding to
// a local TaskQueue, so remote and local callers observe one queue.
type Service struct {
	queue  *service.TaskQueue
	opts   Options
	peerID string
	ln     net.Listener
}

func NewService(queue *service.TaskQueue, opts Options) *Service {
	if opts.WaitPollInterval <= 0 {
		opts.WaitPollInterval = 250 * time.Millisecond
	}
	if opts.DefaultWaitTimeout <= 0 {
		opts.DefaultWaitTimeout = 300 * time.Second
	}
	return &Service{
		queue:  queue,
		opts:   opts,
		peerID: uuid.NewString(),
	}
}

// PeerID is this service instance's identity, published to the announce file.
func (s *Service) PeerID() string {
	return s.peerID
}

// Addr returns the bound listen address, valid after Start.
func (s *Service) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the listener, publishes the announce file and serves inbound
// streams until ctx is cancelled. A bind failure is returned to the caller;
// the embedding worker then degrades to local-only operation.
func (s *Service) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("rpc listen on %s: %w", s.opts.ListenAddr, err)
	}
	s.ln = ln

	if err := s.announce(); err != nil {
		log.Printf("rpc announce failed: %v", err)
	}
	log.Printf("rpc service %s listening on %s", s.peerID, ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go s.acceptLoop(ctx)
	return nil
}

func (s *Service) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("rpc service %s stopped", s.peerID)
				return
			}
			log.Printf("rpc accept failed: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// advertisedAddr is the address written to the announce file.
func (s *Service) advertisedAddr() string {
	if s.opts.PublicAddr != "" {
		return s.opts.PublicAddr
	}
	return s.ln.Addr().String()
}

// announce writes peer identity and reachable address for co-located
// orchestration tooling. Written via temp+rename so readers never see a
// partial file.
func (s *Service) announce() error {
	if s.opts.AnnounceFile == "" {
		return nil
	}
	doc := map[string]string{
		"peer_id":  s.peerID,
		"addr":     s.advertisedAddr(),
		"protocol": ProtocolID,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tmp := s.opts.AnnounceFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.opts.AnnounceFile)
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	// 协议协商：对端先送协议标识，匹配则回送同一行
	proto, err := readLine(r)
	if err != nil || proto != ProtocolID {
		return
	}
	if _, err := w.WriteString(ProtocolID + "\n"); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	line, err := readLine(r)
	if err != nil {
		return
	}
	resp := s.handleRequest(ctx, conn, []byte(line))
	writeResponse(w, resp)
}

func (s *Service) handleRequest(ctx context.Context, conn net.Conn, raw []byte) map[string]interface{} {
	if !json.Valid(raw) {
		return errResponse(ErrStrInvalidJSON)
	}
	if !isJSONObject(raw) {
		return errResponse(ErrStrInvalidMessage)
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(ErrStrInvalidMessage)
	}

	// 先鉴权，再碰队列
	if s.opts.Token != "" && req.Token != s.opts.Token {
		return errResponse(ErrStrUnauthorized)
	}

	switch req.Op {
	case OpSubmit:
		taskID, err := s.queue.Submit(ctx, service.SubmitParams{
			TaskID:    req.TaskID,
			TaskType:  req.TaskType,
			ModelName: req.ModelName,
			Payload:   req.Payload,
		})
		if err != nil {
			return errResponse(err.Error())
		}
		return map[string]interface{}{"ok": true, "task_id": taskID}
	case OpGet:
		task, err := s.queue.Get(ctx, req.TaskID)
		if err != nil {
			return errResponse(err.Error())
		}
		return map[string]interface{}{"ok": true, "task": task}
	case OpWait:
		timeout := time.Duration(req.TimeoutS * float64(time.Second))
		if timeout <= 0 {
			timeout = s.opts.DefaultWaitTimeout
		}
		// wait 可能超过默认读写期限，按请求加长
		conn.SetDeadline(time.Now().Add(timeout + 30*time.Second))
		task, err := s.queue.Wait(ctx, req.TaskID, timeout, s.opts.WaitPollInterval)
		if err != nil {
			return errResponse(err.Error())
		}
		return map[string]interface{}{"ok": true, "task": task}
	default:
		return errResponse(ErrStrUnknownOp)
	}
}

func errResponse(msg string) map[string]interface{} {
	return map[string]interface{}{"ok": false, "error": msg}
}

func writeResponse(w *bufio.Writer, resp map[string]interface{}) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("rpc marshal response failed: %v", err)
		return
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		log.Printf("rpc write response failed: %v", err)
	}
}
