package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "awaydesk.v1.OutOfOfficeService"

	FullMethodCreateOrUpdate = "/" + ServiceName + "/CreateOrUpdate"
	FullMethodListEntries    = "/" + ServiceName + "/ListEntries"
	FullMethodDeleteEntry    = "/" + ServiceName + "/DeleteEntry"
)

type OutOfOfficeServiceServer interface {
	CreateOrUpdate(ctx context.Context, req *CreateOrUpdateRequest) (*CreateOrUpdateResponse, error)
	ListEntries(ctx context.Context, req *ListEntriesRequest) (*ListEntriesResponse, error)
	DeleteEntry(ctx context.Context, req *DeleteEntryRequest) (*DeleteEntryResponse, error)
}

// OutOfOfficeServiceDesc is registered by hand; messages travel through the json codec.
var OutOfOfficeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OutOfOfficeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrUpdate", Handler: createOrUpdateHandler},
		{MethodName: "ListEntries", Handler: listEntriesHandler},
		{MethodName: "DeleteEntry", Handler: deleteEntryHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterOutOfOfficeServiceServer(s grpc.ServiceRegistrar, srv OutOfOfficeServiceServer) {
	s.RegisterService(&OutOfOfficeServiceDesc, srv)
}

func createOrUpdateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateOrUpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OutOfOfficeServiceServer).CreateOrUpdate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodCreateOrUpdate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OutOfOfficeServiceServer).CreateOrUpdate(ctx, req.(*CreateOrUpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listEntriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OutOfOfficeServiceServer).ListEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodListEntries}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OutOfOfficeServiceServer).ListEntries(ctx, req.(*ListEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteEntryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteEntryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OutOfOfficeServiceServer).DeleteEntry(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodDeleteEntry}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OutOfOfficeServiceServer).DeleteEntry(ctx, req.(*DeleteEntryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a thin caller for the service, used by tools and tests.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CreateOrUpdate(ctx context.Context, in *CreateOrUpdateRequest, opts ...grpc.CallOption) (*CreateOrUpdateResponse, error) {
	out := new(CreateOrUpdateResponse)
	if err := c.cc.Invoke(ctx, FullMethodCreateOrUpdate, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error) {
	out := new(ListEntriesResponse)
	if err := c.cc.Invoke(ctx, FullMethodListEntries, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteEntry(ctx context.Context, in *DeleteEntryRequest, opts ...grpc.CallOption) (*DeleteEntryResponse, error) {
	out := new(DeleteEntryResponse)
	if err := c.cc.Invoke(ctx, FullMethodDeleteEntry, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
