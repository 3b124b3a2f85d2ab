package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"PeerTasks/internal/domain"
)

// Client dials a remote Service and performs one request/response exchange
// per call. There is no reconnect or retry; every failure surfaces to the
// caller with the raw reason attached.
type Client struct {
	addr    string
	token   string
	timeout time.Duration
}

func NewClient(addr, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{addr: addr, token: token, timeout: timeout}
}

type response struct {
	OK     bool         `json:"ok"`
	Error  string       `json:"error,omitempty"`
	TaskID string       `json:"task_id,omitempty"`
	Task   *domain.Task `json:"task,omitempty"`
}

// SubmitTask enqueues a task on the remote queue and returns its id.
func (c *Client) SubmitTask(taskType, modelName string, payload json.RawMessage) (string, error) {
	resp, err := c.call(Request{
		Op:        OpSubmit,
		TaskType:  taskType,
		ModelName: modelName,
		Payload:   payload,
	}, c.timeout)
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// GetTask looks up a task on the remote queue; nil means unknown id.
func (c *Client) GetTask(taskID string) (*domain.Task, error) {
	resp, err := c.call(Request{Op: OpGet, TaskID: taskID}, c.timeout)
	if err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// WaitTask blocks up to timeoutS seconds for the task to reach a terminal
// status, returning whatever state exists when the server answers.
func (c *Client) WaitTask(taskID string, timeoutS float64) (*domain.Task, error) {
	deadline := c.timeout + time.Duration(timeoutS*float64(time.Second))
	resp, err := c.call(Request{Op: OpWait, TaskID: taskID, TimeoutS: timeoutS}, deadline)
	if err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *Client) call(req Request, timeout time.Duration) (*response, error) {
	req.Token = c.token

	conn, err := net.DialTimeout("tcp", c.addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: dial %s: %w", req.Op, c.addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	if _, err := w.WriteString(ProtocolID + "\n"); err != nil {
		return nil, fmt.Errorf("rpc %s: handshake write: %w", req.Op, err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("rpc %s: handshake write: %w", req.Op, err)
	}
	proto, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: handshake read: %w", req.Op, err)
	}
	if proto != ProtocolID {
		return nil, fmt.Errorf("rpc %s: protocol mismatch: %q", req.Op, proto)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: encode request: %w", req.Op, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("rpc %s: write request: %w", req.Op, err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("rpc %s: write request: %w", req.Op, err)
	}

	line, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: read response: %w", req.Op, err)
	}
	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("rpc %s: bad response %q: %w", req.Op, line, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("rpc %s: remote error: %s", req.Op, resp.Error)
	}
	return &resp, nil
}
