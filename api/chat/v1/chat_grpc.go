package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names of chat.v1.ChatService.
const (
	ChatService_Register_FullMethodName          = "/chat.v1.ChatService/Register"
	ChatService_Login_FullMethodName             = "/chat.v1.ChatService/Login"
	ChatService_GetProfile_FullMethodName        = "/chat.v1.ChatService/GetProfile"
	ChatService_GetProfileByEmail_FullMethodName = "/chat.v1.ChatService/GetProfileByEmail"
	ChatService_SendMessage_FullMethodName       = "/chat.v1.ChatService/SendMessage"
	ChatService_WatchConversation_FullMethodName = "/chat.v1.ChatService/WatchConversation"
	ChatService_WatchInbox_FullMethodName        = "/chat.v1.ChatService/WatchInbox"
)

// ChatServiceServer is the server API for chat.v1.ChatService.
type ChatServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	GetProfile(context.Context, *GetProfileRequest) (*Profile, error)
	GetProfileByEmail(context.Context, *GetProfileByEmailRequest) (*Profile, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	WatchConversation(*WatchConversationRequest, grpc.ServerStreamingServer[ConversationEvent]) error
	WatchInbox(*WatchInboxRequest, grpc.ServerStreamingServer[InboxSnapshot]) error
}

// UnimplementedChatServiceServer returns Unimplemented for every method.
// Embed it by value for forward compatibility.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedChatServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServiceServer) GetProfile(context.Context, *GetProfileRequest) (*Profile, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProfile not implemented")
}
func (UnimplementedChatServiceServer) GetProfileByEmail(context.Context, *GetProfileByEmailRequest) (*Profile, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProfileByEmail not implemented")
}
func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedChatServiceServer) WatchConversation(*WatchConversationRequest, grpc.ServerStreamingServer[ConversationEvent]) error {
	return status.Error(codes.Unimplemented, "method WatchConversation not implemented")
}
func (UnimplementedChatServiceServer) WatchInbox(*WatchInboxRequest, grpc.ServerStreamingServer[InboxSnapshot]) error {
	return status.Error(codes.Unimplemented, "method WatchInbox not implemented")
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(ChatServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _ChatService_WatchConversation_Handler(srv any, stream grpc.ServerStream) error {
	m := new(WatchConversationRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ChatServiceServer).WatchConversation(m, &grpc.GenericServerStream[WatchConversationRequest, ConversationEvent]{ServerStream: stream})
}

func _ChatService_WatchInbox_Handler(srv any, stream grpc.ServerStream) error {
	m := new(WatchInboxRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ChatServiceServer).WatchInbox(m, &grpc.GenericServerStream[WatchInboxRequest, InboxSnapshot]{ServerStream: stream})
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for chat.v1.ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "chat.v1.ChatService",
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    unaryHandler(ChatService_Register_FullMethodName, ChatServiceServer.Register),
		},
		{
			MethodName: "Login",
			Handler:    unaryHandler(ChatService_Login_FullMethodName, ChatServiceServer.Login),
		},
		{
			MethodName: "GetProfile",
			Handler:    unaryHandler(ChatService_GetProfile_FullMethodName, ChatServiceServer.GetProfile),
		},
		{
			MethodName: "GetProfileByEmail",
			Handler:    unaryHandler(ChatService_GetProfileByEmail_FullMethodName, ChatServiceServer.GetProfileByEmail),
		},
		{
			MethodName: "SendMessage",
			Handler:    unaryHandler(ChatService_SendMessage_FullMethodName, ChatServiceServer.SendMessage),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchConversation",
			Handler:       _ChatService_WatchConversation_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "WatchInbox",
			Handler:       _ChatService_WatchInbox_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chat/v1/chat.proto",
}

// ChatServiceClient is the client API for chat.v1.ChatService.
type ChatServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*Profile, error)
	GetProfileByEmail(ctx context.Context, in *GetProfileByEmailRequest, opts ...grpc.CallOption) (*Profile, error)
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error)
	WatchConversation(ctx context.Context, in *WatchConversationRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationEvent], error)
	WatchInbox(ctx context.Context, in *WatchInboxRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[InboxSnapshot], error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChatServiceClient returns a client using the json codec.
func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, ChatService_Register_FullMethodName, in, opts)
}

func (c *chatServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, ChatService_Login_FullMethodName, in, opts)
}

func (c *chatServiceClient) GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, ChatService_GetProfile_FullMethodName, in, opts)
}

func (c *chatServiceClient) GetProfileByEmail(ctx context.Context, in *GetProfileByEmailRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, ChatService_GetProfileByEmail_FullMethodName, in, opts)
}

func (c *chatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, ChatService_SendMessage_FullMethodName, in, opts)
}

func serverStream[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Resp], error) {
	stream, err := cc.NewStream(ctx, desc, method, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Resp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) WatchConversation(ctx context.Context, in *WatchConversationRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationEvent], error) {
	return serverStream[WatchConversationRequest, ConversationEvent](ctx, c.cc, &ChatService_ServiceDesc.Streams[0], ChatService_WatchConversation_FullMethodName, in, opts)
}

func (c *chatServiceClient) WatchInbox(ctx context.Context, in *WatchInboxRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[InboxSnapshot], error) {
	return serverStream[WatchInboxRequest, InboxSnapshot](ctx, c.cc, &ChatService_ServiceDesc.Streams[1], ChatService_WatchInbox_FullMethodName, in, opts)
}
