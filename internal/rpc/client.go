package rpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Diagnostic is a compile error reported by the server.
type Diagnostic struct {
	Code    string
	Phase   string
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s Error at line %d [%s]: %s", d.Phase, d.Line, d.Code, d.Message)
}

type CompileReply struct {
	RequestID   string
	WAT         string
	Cached      bool
	Diagnostics []Diagnostic
}

// RunReply carries either a value, a trap message or diagnostics.
type RunReply struct {
	RequestID   string
	Kind        string
	Value       string
	Trap        string
	Diagnostics []Diagnostic
}

type Client struct {
	conn    *grpc.ClientConn
	service *desc.ServiceDescriptor
}

// Dial connects to target without transport security. Extra options are
// applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	sd, err := Service()
	if err != nil {
		return nil, err
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	return &Client{conn: conn, service: sd}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, method, file, source string) (*dynamic.Message, error) {
	md := c.service.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("method %s not found in %s", method, ServiceName)
	}
	req := dynamic.NewMessage(md.GetInputType())
	req.SetFieldByName("request_id", uuid.NewString())
	req.SetFieldByName("file", file)
	req.SetFieldByName("source", source)

	resp := dynamic.NewMessage(md.GetOutputType())
	fullMethod := "/" + ServiceName + "/" + method
	if err := c.conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Compile(ctx context.Context, file, source string) (*CompileReply, error) {
	resp, err := c.invoke(ctx, "Compile", file, source)
	if err != nil {
		return nil, err
	}
	diags, err := diagnosticsOf(resp)
	if err != nil {
		return nil, err
	}
	return &CompileReply{
		RequestID:   stringField(resp, "request_id"),
		WAT:         stringField(resp, "wat"),
		Cached:      resp.GetFieldByName("cached").(bool),
		Diagnostics: diags,
	}, nil
}

func (c *Client) Run(ctx context.Context, file, source string) (*RunReply, error) {
	resp, err := c.invoke(ctx, "Run", file, source)
	if err != nil {
		return nil, err
	}
	diags, err := diagnosticsOf(resp)
	if err != nil {
		return nil, err
	}
	return &RunReply{
		RequestID:   stringField(resp, "request_id"),
		Kind:        stringField(resp, "kind"),
		Value:       stringField(resp, "value"),
		Trap:        stringField(resp, "trap"),
		Diagnostics: diags,
	}, nil
}

func stringField(m *dynamic.Message, name string) string {
	s, _ := m.GetFieldByName(name).(string)
	return s
}

func diagnosticsOf(m *dynamic.Message) ([]Diagnostic, error) {
	items, _ := m.GetFieldByName("diagnostics").([]interface{})
	var out []Diagnostic
	for _, item := range items {
		d, ok := item.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("unexpected diagnostic type %T", item)
		}
		line, _ := d.GetFieldByName("line").(int32)
		out = append(out, Diagnostic{
			Code:    stringField(d, "code"),
			Phase:   stringField(d, "phase"),
			Line:    int(line),
			Message: stringField(d, "message"),
		})
	}
	return out, nil
}
