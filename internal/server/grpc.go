package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const serviceName = "invoice.v1.ExtractionService"

// ExtractionServer is the gRPC surface. Messages are google.protobuf.Struct
// objects whose fields mirror the JSON shapes of the HTTP API.
type ExtractionServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestPath(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ExtractionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExtractionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ExtractionServiceDesc describes invoice.v1.ExtractionService for grpc.Server.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Extract", ExtractionServer.Extract),
		unary("GetRecord", ExtractionServer.GetRecord),
		unary("ListRecords", ExtractionServer.ListRecords),
		unary("UpdateRecord", ExtractionServer.UpdateRecord),
		unary("IngestPath", ExtractionServer.IngestPath),
		unary("IngestDirectory", ExtractionServer.IngestDirectory),
		unary("ExportRecords", ExtractionServer.ExportRecords),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoice/v1/extraction.proto",
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

// ExtractionClient calls invoice.v1.ExtractionService.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

// Call invokes method with req and returns the response struct.
func (c *ExtractionClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCService adapts Service to ExtractionServer.
type GRPCService struct {
	svc    *Service
	logger *slog.Logger
}

func NewGRPCService(svc *Service, logger *slog.Logger) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{svc: svc, logger: logger}
}

func (g *GRPCService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	content, err := base64.StdEncoding.DecodeString(f["content"].GetStringValue())
	if err != nil {
		return nil, common.InvalidArgumentErrorf("content must be base64: %v", err)
	}
	out, err := g.svc.ExtractDocument(ctx, f["filename"].GetStringValue(), f["media_type"].GetStringValue(), content, f["force"].GetBoolValue())
	if err != nil {
		g.logger.Error("grpc extract failed", "filename", f["filename"].GetStringValue(), "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(extractResponse{Record: out.Record, Deduplicated: out.Deduplicated, Remediation: out.Remediation})
}

func (g *GRPCService) GetRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := g.svc.GetRecord(ctx, req.GetFields()["id"].GetStringValue())
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(rec)
}

func (g *GRPCService) ListRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	recs, err := g.svc.ListRecords(ctx, f["status"].GetStringValue(), int(f["limit"].GetNumberValue()))
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"records": recs})
}

func (g *GRPCService) UpdateRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	rs := f["record"].GetStructValue()
	if rs == nil {
		return nil, common.InvalidArgumentError("record is required")
	}
	body, err := rs.MarshalJSON()
	if err != nil {
		return nil, common.InvalidArgumentErrorf("record: %v", err)
	}
	rec, err := g.svc.UpdateRecord(ctx, f["id"].GetStringValue(), body)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(rec)
}

func (g *GRPCService) IngestPath(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	r, err := g.svc.IngestPath(ctx, f["path"].GetStringValue(), f["force"].GetBoolValue())
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(ingestResult(r))
}

func (g *GRPCService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	// skip_hidden defaults to true when absent
	skipHidden := true
	if v, ok := f["skip_hidden"]; ok {
		skipHidden = v.GetBoolValue()
	}
	results, stats, err := g.svc.IngestDirectory(ctx, f["root_path"].GetStringValue(), skipHidden, f["force"].GetBoolValue())
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(ingestDirectoryResponse(results, stats))
}

func (g *GRPCService) ExportRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	data, contentType, err := g.svc.Export(ctx, f["format"].GetStringValue(), f["status"].GetStringValue())
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"content_type": contentType,
		"data":         base64.StdEncoding.EncodeToString(data),
	})
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalError(fmt.Sprintf("encode response: %v", err))
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, common.InternalError(fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// LoggingInterceptor tags each call with a request ID and logs its outcome.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		ctx, id := common.EnsureRequestID(ctx)
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc.call.failed", "method", info.FullMethod, "request_id", id, "error", err,
				"duration_ms", time.Since(start).Milliseconds())
			return resp, err
		}
		logger.Info("grpc.call.ok", "method", info.FullMethod, "request_id", id,
			"duration_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}
