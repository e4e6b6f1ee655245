// Package grpcapi exposes engine health and ledger snapshots over gRPC.
//
// The snapshot service has no generated stubs: it is registered from a
// hand-written service descriptor and exchanges google.protobuf.Struct
// messages, so clients only need the well-known types.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// ServiceName is the fully qualified snapshot service name.
const ServiceName = "wbs.v1.Snapshots"

const getMethod = "/" + ServiceName + "/Get"

// DefaultHealthInterval is how often loop status is copied into the health
// service.
const DefaultHealthInterval = 5 * time.Second

// RecordSource builds snapshot records on demand.
type RecordSource interface {
	Record(kind domain.SnapshotKind) (domain.SnapshotRecord, error)
}

// StatusSource reports which polling loops are alive.
type StatusSource interface {
	LoopStatus() map[domain.ObservationKind]bool
}

// SnapshotsServer is the server side of wbs.v1.Snapshots.
type SnapshotsServer interface {
	Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var snapshotsDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wbs/v1/snapshots.proto",
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotsServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotsServer).Get(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server hosts the health and snapshot services.
type Server struct {
	records RecordSource
	status  StatusSource
	health  *health.Server
	grpc    *grpc.Server
	clock   timeutil.Clock
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock driving health refreshes.
func WithClock(c timeutil.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer registers both services on a new grpc.Server.
func NewServer(records RecordSource, status StatusSource, opts ...Option) *Server {
	s := &Server{
		records: records,
		status:  status,
		health:  health.NewServer(),
		grpc:    grpc.NewServer(),
		clock:   timeutil.RealClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.grpc.RegisterService(&snapshotsDesc, s)
	s.RefreshHealth()
	return s
}

// Get returns the snapshot named by the request's "kind" field ("tags" or
// "networks", default "networks") as a Struct shaped like the JSON export.
func (s *Server) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kind := domain.SnapshotNetworks
	if v, ok := req.GetFields()["kind"]; ok {
		kind = domain.SnapshotKind(v.GetStringValue())
	}
	if !kind.IsValid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown snapshot kind %q", kind)
	}

	rec, err := s.records.Record(kind)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "record %s: %v", kind, err)
	}
	out, err := toStruct(rec)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s: %v", kind, err)
	}
	return out, nil
}

func toStruct(rec domain.SnapshotRecord) (*structpb.Struct, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// RefreshHealth publishes each loop as service "wbs.<radio>" and the
// overall status under "", which is SERVING while any loop runs.
func (s *Server) RefreshHealth() {
	serving := false
	if s.status != nil {
		for radio, running := range s.status.LoopStatus() {
			s.health.SetServingStatus("wbs."+string(radio), servingStatus(running))
			serving = serving || running
		}
	}
	s.health.SetServingStatus("", servingStatus(serving))
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop shuts down gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Run listens on addr, refreshes health every interval and stops when ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen error: %w", err)
	}

	go func() {
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.Stop()
				return
			case <-ticker.C():
				s.RefreshHealth()
			}
		}
	}()

	s.logger.Info("gRPC server listening", "addr", addr)
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("grpc server error: %w", err)
	}
	return nil
}

// GetSnapshot calls wbs.v1.Snapshots/Get on cc.
func GetSnapshot(ctx context.Context, cc grpc.ClientConnInterface, kind domain.SnapshotKind) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"kind": string(kind)})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, getMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
