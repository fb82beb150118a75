// Package server exposes the compiler and VM as the gRPC service
// soli.v1.Executor. Messages are built dynamically from the embedded
// executor.proto, so no generated code is needed.
package server

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solisoft/soli/internal/backend"
	"github.com/solisoft/soli/internal/cache"
	"github.com/solisoft/soli/internal/config"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/vm"
)

const defaultFile = "<request>"

type handlerFunc func(ctx context.Context, md *desc.MethodDescriptor, in *dynamic.Message) (*dynamic.Message, error)

// Server implements soli.v1.Executor. Every request compiles through the
// shared module cache and runs on its own VM.
type Server struct {
	backend   *backend.VMBackend
	cache     *cache.ModuleCache
	logger    zerolog.Logger
	maxSource int
	addr      string

	sd       *desc.ServiceDescriptor
	handlers map[string]handlerFunc
	grpc     *grpc.Server
}

// New creates a server running programs on b. c may be nil.
func New(b *backend.VMBackend, c *cache.ModuleCache, logger zerolog.Logger, cfg config.ServerConfig) (*Server, error) {
	sd, err := loadService()
	if err != nil {
		return nil, err
	}
	s := &Server{
		backend:   b,
		cache:     c,
		logger:    logger,
		maxSource: cfg.MaxSourceBytes,
		addr:      cfg.Addr,
		sd:        sd,
	}
	s.handlers = map[string]handlerFunc{
		"Execute":     s.execute,
		"Disassemble": s.disassemble,
		"Invoke":      s.invoke,
	}
	return s, nil
}

// ServiceDesc builds the grpc.ServiceDesc for the executor service.
func (s *Server) ServiceDesc() *grpc.ServiceDesc {
	svc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*interface{})(nil),
		Methods:     []grpc.MethodDesc{},
		Streams:     []grpc.StreamDesc{},
		Metadata:    s.sd.GetFile().GetName(),
	}
	for _, method := range s.sd.GetMethods() {
		md := method
		handle, ok := s.handlers[md.GetName()]
		if !ok || md.IsClientStreaming() || md.IsServerStreaming() {
			continue
		}
		svc.Methods = append(svc.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := dynamic.NewMessage(md.GetInputType())
				if err := dec(in); err != nil {
					return nil, err
				}
				call := func(ctx context.Context, req interface{}) (interface{}, error) {
					return handle(ctx, md, req.(*dynamic.Message))
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + md.GetName()}
				return interceptor(ctx, in, info, call)
			},
		})
	}
	return svc
}

// Register adds the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(s.ServiceDesc(), s)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	if s.grpc == nil {
		s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
		s.Register(s.grpc)
	}
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("executor listening")
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Stop waits for in-flight requests and shuts the server down.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

func (s *Server) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	ev := s.logger.Debug()
	if err != nil {
		ev = s.logger.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).Str("code", status.Code(err).String()).Dur("elapsed", time.Since(start)).Msg("rpc")
	return resp, err
}

func (s *Server) request(ctx context.Context, in *dynamic.Message) (*pipeline.PipelineContext, error) {
	src := stringField(in, "source")
	if s.maxSource > 0 && len(src) > s.maxSource {
		return nil, status.Errorf(codes.InvalidArgument, "source is %d bytes, limit is %d", len(src), s.maxSource)
	}
	pctx := pipeline.NewPipelineContext(src)
	pctx.FilePath = defaultFile
	if in.GetMessageDescriptor().FindFieldByName("file") != nil {
		if file := stringField(in, "file"); file != "" {
			pctx.FilePath = file
		}
	}
	pctx.RunID = uuid.NewString()
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return pctx, nil
}

func (s *Server) execute(ctx context.Context, md *desc.MethodDescriptor, in *dynamic.Message) (*dynamic.Message, error) {
	pctx, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("run_id", pctx.RunID).Logger()
	backend.NewPipeline(s.backend.ForContext(ctx), s.cache, log).Run(pctx)

	out := dynamic.NewMessage(md.GetOutputType())
	out.SetFieldByName("run_id", pctx.RunID)
	out.SetFieldByName("cache_hit", pctx.CacheHit)
	for _, line := range pctx.Output {
		out.AddRepeatedFieldByName("output", line)
	}
	if err := backend.FirstError(pctx); err != nil {
		out.SetFieldByName("error", err.Error())
		out.SetFieldByName("error_kind", errorKind(err))
		return out, nil
	}
	if result, ok := pctx.Result.(vm.Value); ok {
		out.SetFieldByName("result", result.Inspect())
	}
	return out, nil
}

func (s *Server) disassemble(ctx context.Context, md *desc.MethodDescriptor, in *dynamic.Message) (*dynamic.Message, error) {
	pctx, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}
	pipeline.New(backend.Frontend(s.cache, s.logger)...).Run(pctx)

	out := dynamic.NewMessage(md.GetOutputType())
	if err := backend.FirstError(pctx); err != nil {
		out.SetFieldByName("error", err.Error())
		return out, nil
	}
	listing, err := s.backend.Disassemble(pctx)
	if err != nil {
		out.SetFieldByName("error", err.Error())
		return out, nil
	}
	out.SetFieldByName("listing", listing)
	return out, nil
}

func (s *Server) invoke(ctx context.Context, md *desc.MethodDescriptor, in *dynamic.Message) (*dynamic.Message, error) {
	function := stringField(in, "function")
	if function == "" {
		return nil, status.Error(codes.InvalidArgument, "function is required")
	}
	args, err := scalarList(in, "args")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pctx, err := s.request(ctx, in)
	if err != nil {
		return nil, err
	}

	out := dynamic.NewMessage(md.GetOutputType())
	fail := func(err error) (*dynamic.Message, error) {
		out.SetFieldByName("error", err.Error())
		out.SetFieldByName("error_kind", errorKind(err))
		return out, nil
	}

	pipeline.New(backend.Frontend(s.cache, s.logger)...).Run(pctx)
	if err := backend.FirstError(pctx); err != nil {
		return fail(err)
	}
	result, err := s.backend.ForContext(ctx).Invoke(pctx, function, args...)
	for _, line := range pctx.Output {
		out.AddRepeatedFieldByName("output", line)
	}
	if err != nil {
		return fail(err)
	}
	scalar := md.GetOutputType().FindFieldByName("result").GetMessageType()
	out.SetFieldByName("result", toScalar(scalar, result))
	return out, nil
}

func stringField(msg *dynamic.Message, name string) string {
	s, _ := msg.GetFieldByName(name).(string)
	return s
}
