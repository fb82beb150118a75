package server

import (
	"context"
	"errors"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/solisoft/soli/internal/vm"
)

// ExecuteResult is the decoded ExecuteResponse.
type ExecuteResult struct {
	RunID     string
	Output    []string
	Result    string
	Error     string
	ErrorKind string
	CacheHit  bool
}

// InvokeResult is the decoded InvokeResponse.
type InvokeResult struct {
	Result    vm.Value
	Output    []string
	Error     string
	ErrorKind string
}

// Client calls a remote executor.
type Client struct {
	conn  grpc.ClientConnInterface
	close func() error
	sd    *desc.ServiceDescriptor
}

// Dial connects to an executor at target without transport security.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c, err := NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.close = conn.Close
	return c, nil
}

// NewClient wraps an existing connection. Closing it stays with the caller.
func NewClient(conn grpc.ClientConnInterface) (*Client, error) {
	sd, err := loadService()
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, sd: sd}, nil
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

func (c *Client) call(ctx context.Context, method string, fill func(*dynamic.Message) error) (*dynamic.Message, error) {
	md, err := findMethod(c.sd, method)
	if err != nil {
		return nil, err
	}
	req := dynamic.NewMessage(md.GetInputType())
	if err := fill(req); err != nil {
		return nil, err
	}
	resp := dynamic.NewMessage(md.GetOutputType())
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Execute runs source remotely. Program failures are reported in the
// result; the error is for transport failures.
func (c *Client) Execute(ctx context.Context, source, file string) (*ExecuteResult, error) {
	resp, err := c.call(ctx, "Execute", func(req *dynamic.Message) error {
		if err := req.TrySetFieldByName("source", source); err != nil {
			return err
		}
		return req.TrySetFieldByName("file", file)
	})
	if err != nil {
		return nil, err
	}
	cacheHit, _ := resp.GetFieldByName("cache_hit").(bool)
	return &ExecuteResult{
		RunID:     stringField(resp, "run_id"),
		Output:    stringList(resp, "output"),
		Result:    stringField(resp, "result"),
		Error:     stringField(resp, "error"),
		ErrorKind: stringField(resp, "error_kind"),
		CacheHit:  cacheHit,
	}, nil
}

// Disassemble returns the bytecode listing of source.
func (c *Client) Disassemble(ctx context.Context, source string) (string, error) {
	resp, err := c.call(ctx, "Disassemble", func(req *dynamic.Message) error {
		return req.TrySetFieldByName("source", source)
	})
	if err != nil {
		return "", err
	}
	if msg := stringField(resp, "error"); msg != "" {
		return "", errors.New(msg)
	}
	return stringField(resp, "listing"), nil
}

// Invoke runs source and calls function with args.
func (c *Client) Invoke(ctx context.Context, source, function string, args ...vm.Value) (*InvokeResult, error) {
	resp, err := c.call(ctx, "Invoke", func(req *dynamic.Message) error {
		if err := req.TrySetFieldByName("source", source); err != nil {
			return err
		}
		if err := req.TrySetFieldByName("function", function); err != nil {
			return err
		}
		scalar := req.GetMessageDescriptor().FindFieldByName("args").GetMessageType()
		for _, a := range args {
			if err := req.TryAddRepeatedFieldByName("args", toScalar(scalar, a)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := &InvokeResult{
		Output:    stringList(resp, "output"),
		Error:     stringField(resp, "error"),
		ErrorKind: stringField(resp, "error_kind"),
		Result:    vm.NullVal(),
	}
	if m, ok := resp.GetFieldByName("result").(*dynamic.Message); ok && m != nil {
		if res.Result, err = fromScalar(m); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func stringList(msg *dynamic.Message, name string) []string {
	raw, _ := msg.GetFieldByName(name).([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
