package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/watc/internal/compiler"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/vm"
)

type unaryHandler func(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error)

// Server answers Compile and Run calls with a shared compiler.
type Server struct {
	compiler *compiler.Compiler
	service  *desc.ServiceDescriptor
	Logger   *log.Logger
}

func NewServer(c *compiler.Compiler) (*Server, error) {
	sd, err := Service()
	if err != nil {
		return nil, err
	}
	return &Server{compiler: c, service: sd, Logger: c.Logger}, nil
}

func (s *Server) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// Register adds the Compiler service to g.
func (s *Server) Register(g *grpc.Server) {
	handlers := map[string]unaryHandler{
		"Compile": s.compile,
		"Run":     s.run,
	}

	sd := &grpc.ServiceDesc{
		ServiceName: s.service.GetFullyQualifiedName(),
		HandlerType: (*interface{})(nil),
		Metadata:    protoFile,
	}
	for _, md := range s.service.GetMethods() {
		h, ok := handlers[md.GetName()]
		if !ok {
			continue
		}
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler:    methodHandler(md, h),
		})
	}
	g.RegisterService(sd, s)
}

func methodHandler(md *desc.MethodDescriptor, h unaryHandler) grpc.MethodHandler {
	fullMethod := "/" + md.GetService().GetFullyQualifiedName() + "/" + md.GetName()
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := dynamic.NewMessage(md.GetInputType())
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*dynamic.Message))
		})
	}
}

func (s *Server) method(name string) *desc.MethodDescriptor {
	return s.service.FindMethodByName(name)
}

func requestID(req *dynamic.Message) string {
	if id, _ := req.GetFieldByName("request_id").(string); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) compile(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	id := requestID(req)
	file, _ := req.GetFieldByName("file").(string)
	source, _ := req.GetFieldByName("source").(string)
	s.logf("[%s] compile %s", id, file)

	out := dynamic.NewMessage(s.method("Compile").GetOutputType())
	out.SetFieldByName("request_id", id)

	res, err := s.compiler.Compile(ctx, file, source)
	if err != nil {
		if err := addDiagnostic(out, err); err != nil {
			return nil, err
		}
		return out, nil
	}
	out.SetFieldByName("wat", res.WAT)
	out.SetFieldByName("cached", res.Cached)
	return out, nil
}

func (s *Server) run(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	id := requestID(req)
	file, _ := req.GetFieldByName("file").(string)
	source, _ := req.GetFieldByName("source").(string)
	s.logf("[%s] run %s", id, file)

	out := dynamic.NewMessage(s.method("Run").GetOutputType())
	out.SetFieldByName("request_id", id)

	v, _, err := s.compiler.Run(ctx, file, source)
	var trap *vm.Trap
	switch {
	case err == nil:
		out.SetFieldByName("kind", v.Kind.String())
		out.SetFieldByName("value", v.String())
	case errors.As(err, &trap):
		out.SetFieldByName("trap", trap.Error())
	case compiler.IsCompileError(err):
		if err := addDiagnostic(out, err); err != nil {
			return nil, err
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		return nil, status.Errorf(codes.Internal, "run %s: %v", file, err)
	}
	return out, nil
}

func addDiagnostic(out *dynamic.Message, err error) error {
	var de *diagnostics.DiagnosticError
	if !errors.As(err, &de) {
		return status.Errorf(codes.Internal, "%v", err)
	}
	fd := out.GetMessageDescriptor().FindFieldByName("diagnostics")
	d := dynamic.NewMessage(fd.GetMessageType())
	d.SetFieldByName("code", string(de.Code))
	d.SetFieldByName("phase", de.Phase().String())
	d.SetFieldByName("line", int32(de.Line()))
	d.SetFieldByName("message", de.Message)
	return out.TryAddRepeatedFieldByName("diagnostics", d)
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, c *compiler.Compiler) error {
	srv, err := NewServer(c)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return serve(ctx, lis, srv)
}

// serve runs the gRPC server on lis until ctx is cancelled or the listener
// fails. The stopper goroutine never outlives it.
func serve(ctx context.Context, lis net.Listener, srv *Server) error {
	g := grpc.NewServer()
	srv.Register(g)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			g.GracefulStop()
		case <-done:
		}
	}()

	srv.logf("serving %s on %s", ServiceName, lis.Addr())
	err := g.Serve(lis)
	close(done)
	<-stopped
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
