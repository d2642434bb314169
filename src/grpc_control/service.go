package grpc_control

import (
	"context"

	datasource "ohlc-streamer/src/data_source"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EngineControl is the part of the engine the control plane drives.
type EngineControl interface {
	Status() models.MEngineStatus
	RequestShutdown()
}

// ClientCounter reports connected push clients.
type ClientCounter interface {
	Clients() []string
}

// -----------------------------------------------------------------------------

// ControlService implements ControlServer
type ControlService struct {
	Engine     EngineControl
	Clients    ClientCounter
	DataSource *datasource.MultiSourceManager
	Logger     *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	engine EngineControl,
	clients ClientCounter,
	ds *datasource.MultiSourceManager,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Engine:     engine,
		Clients:    clients,
		DataSource: ds,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.Engine.Status()
	clients := 0
	if s.Clients != nil {
		clients = len(s.Clients.Clients())
	}

	return structpb.NewStruct(map[string]interface{}{
		"state":   st.State,
		"symbols": st.Symbols,
		"trades":  st.Trades,
		"updates": st.Updates,
		"clients": clients,
	})
}

// -----------------------------------------------------------------------------

// Shutdown moves the engine to DOWN. The worker applies the request
// asynchronously, so the returned state may still be READY.
func (s *ControlService) Shutdown(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.Logger.Warning("Engine shutdown requested over gRPC")
	s.Engine.RequestShutdown()

	return structpb.NewStruct(map[string]interface{}{
		"shutdown_requested": true,
		"state":              s.Engine.Status().State,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSources(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	names := []interface{}{}
	if s.DataSource != nil {
		for _, name := range s.DataSource.SourceNames() {
			names = append(names, name)
		}
	}
	return structpb.NewStruct(map[string]interface{}{"sources": names})
}

// -----------------------------------------------------------------------------

func (s *ControlService) RemoveSource(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "source name is required")
	}
	if s.DataSource == nil {
		return nil, status.Error(codes.Unavailable, "no data sources managed")
	}

	if err := s.DataSource.RemoveSource(req.GetValue()); err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	s.Logger.Info("Source %s removed over gRPC", req.GetValue())

	return structpb.NewStruct(map[string]interface{}{
		"removed": req.GetValue(),
	})
}
