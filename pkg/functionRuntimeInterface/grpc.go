package functionRuntimeInterface

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// The gRPC surface carries the same fields as the HTTP protocol inside google.protobuf.Struct
// messages, so no generated code is needed on either side.
const (
	RuntimeServiceName = "functionruntime.Runtime"
	ExecuteMethod      = "/functionruntime.Runtime/Execute"
)

// RuntimeServer is the server API for the functionruntime.Runtime service.
type RuntimeServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterRuntimeServer(s grpc.ServiceRegistrar, srv RuntimeServer) {
	s.RegisterService(&runtimeServiceDesc, srv)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var runtimeServiceDesc = grpc.ServiceDesc{
	ServiceName: RuntimeServiceName,
	HandlerType: (*RuntimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "functionruntime.proto",
}

type grpcRuntime struct {
	runtime *Runtime
}

func (g *grpcRuntime) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var challenge string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(ChallengeHeader); len(values) > 0 {
			challenge = values[0]
		}
	}
	if !g.runtime.authorized(challenge) {
		return nil, status.Error(codes.Unauthenticated, (&UnauthorizedError{}).Error())
	}

	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	exec, err := g.runtime.Execute(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, (&ExecutionFailedError{ExecutionID: exec.ID, Stderr: exec.Stderr}).Error())
	}

	response, err := responseValue(exec.Response)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	out, err := structpb.NewStruct(map[string]any{
		"stdout":      exec.Stdout,
		"stderr":      exec.Stderr,
		"executionId": exec.ID,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out.Fields["response"] = response
	return out, nil
}

func requestFromStruct(in *structpb.Struct) (*Request, error) {
	req := &Request{
		Variables: map[string]string{},
		Headers:   map[string]string{},
	}
	fields := in.GetFields()

	if v, ok := fields["payload"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("payload must be a string")
			}
			req.Payload = s.StringValue
		}
	}
	if err := stringMap(fields["variables"], req.Variables); err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	if err := stringMap(fields["headers"], req.Headers); err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	return req, nil
}

func stringMap(v *structpb.Value, into map[string]string) error {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil
	case *structpb.Value_StructValue:
		for key, value := range kind.StructValue.GetFields() {
			s, ok := value.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return fmt.Errorf("value of %q must be a string", key)
			}
			into[key] = s.StringValue
		}
		return nil
	default:
		return fmt.Errorf("must be an object")
	}
}

func responseValue(res *Response) (*structpb.Value, error) {
	if !res.IsJSON() {
		return structpb.NewStringValue(string(res.Body)), nil
	}
	var decoded any
	if err := json.Unmarshal(res.Body, &decoded); err != nil {
		return nil, err
	}
	return structpb.NewValue(decoded)
}
