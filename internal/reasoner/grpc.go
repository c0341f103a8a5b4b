package reasoner

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// The self-hosted reasoner speaks a single unary method whose request and
// response are google.protobuf.Struct:
//
//	request:  {session_id, messages: [{role, content}], temperature?, max_tokens?, json?}
//	response: {text, model?, input_tokens?, output_tokens?}
const (
	grpcServiceName    = "advisor.reasoner.v1.Reasoner"
	grpcCompleteMethod = "/" + grpcServiceName + "/Complete"
)

// #region client
// GRPCProvider calls a self-hosted inference service over gRPC.
type GRPCProvider struct {
	name  string
	model string
	conn  *grpc.ClientConn
	owned bool
}

// NewGRPCProvider connects to addr without TLS.
func NewGRPCProvider(name, addr, model string) (*GRPCProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCProvider{name: name, model: model, conn: conn, owned: true}, nil
}

// NewGRPCProviderWithConn uses an existing connection. Close leaves it open.
func NewGRPCProviderWithConn(name, model string, conn *grpc.ClientConn) *GRPCProvider {
	return &GRPCProvider{name: name, model: model, conn: conn}
}

func (p *GRPCProvider) Name() string  { return p.name }
func (p *GRPCProvider) Model() string { return p.model }

// Close shuts down the connection if the provider dialed it.
func (p *GRPCProvider) Close() error {
	if !p.owned {
		return nil
	}
	return p.conn.Close()
}

// Complete sends the request as a Struct.
func (p *GRPCProvider) Complete(ctx context.Context, req Request) (Response, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := p.conn.Invoke(ctx, grpcCompleteMethod, in, out); err != nil {
		return Response{}, fmt.Errorf("complete rpc: %w", err)
	}

	f := out.GetFields()
	resp := Response{
		Text:         f["text"].GetStringValue(),
		Model:        f["model"].GetStringValue(),
		InputTokens:  int(f["input_tokens"].GetNumberValue()),
		OutputTokens: int(f["output_tokens"].GetNumberValue()),
	}
	if resp.Model == "" {
		resp.Model = p.model
	}
	return resp, nil
}

func encodeRequest(req Request) (*structpb.Struct, error) {
	msgs := make([]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, map[string]any{"role": string(m.Role), "content": m.Content})
	}
	fields := map[string]any{
		"session_id": req.SessionID,
		"messages":   msgs,
		"json":       req.JSON,
	}
	if req.Temperature != nil {
		fields["temperature"] = float64(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		fields["max_tokens"] = req.MaxTokens
	}
	return structpb.NewStruct(fields)
}

// #endregion client

// #region server
// CompletionServer is implemented by in-process or test reasoners exposed
// over the same wire contract.
type CompletionServer interface {
	Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterCompletionServer attaches srv to a gRPC server.
func RegisterCompletionServer(s grpc.ServiceRegistrar, srv CompletionServer) {
	s.RegisterService(&reasonerServiceDesc, srv)
}

var reasonerServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*CompletionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Complete", Handler: completeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "advisor/reasoner/v1/reasoner.proto",
}

func completeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompletionServer).Complete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcCompleteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompletionServer).Complete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ProviderServer exposes any Provider as a CompletionServer.
type ProviderServer struct {
	Provider Provider
}

func (s ProviderServer) Complete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := decodeRequest(in)
	resp, err := s.Provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"text":          resp.Text,
		"model":         resp.Model,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	})
}

func decodeRequest(in *structpb.Struct) Request {
	f := in.GetFields()
	req := Request{
		SessionID: f["session_id"].GetStringValue(),
		JSON:      f["json"].GetBoolValue(),
		MaxTokens: int(f["max_tokens"].GetNumberValue()),
	}
	if t, ok := f["temperature"]; ok {
		req.Temperature = Temp(float32(t.GetNumberValue()))
	}
	for _, v := range f["messages"].GetListValue().GetValues() {
		mf := v.GetStructValue().GetFields()
		req.Messages = append(req.Messages, Message{
			Role:    Role(mf["role"].GetStringValue()),
			Content: mf["content"].GetStringValue(),
		})
	}
	return req
}

// #endregion server
