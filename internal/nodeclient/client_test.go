package nodeclient

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"127.0.0.1", "127.0.0.1:16110"},
		{"127.0.0.1:18110", "127.0.0.1:18110"},
		{"grpc://node.example.com:16110", "node.example.com:16110"},
		{"node.example.com", "node.example.com:16110"},
		{"", ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, normalizeAddress(c.in), "input %q", c.in)
	}
}

func TestDialRejectsEmptyAddress(t *testing.T) {
	_, err := Dial("   ")
	require.Error(t, err)
}

func TestParseHash(t *testing.T) {
	valid := "deadbeef000000000000000000000000000000000000000000000000000000aa"
	out, err := ParseHash(valid)
	require.NoError(t, err)
	require.Equal(t, byte(0xde), out[0])
	require.Equal(t, byte(0xaa), out[31])

	_, err = ParseHash("too-short")
	require.Error(t, err)

	_, err = ParseHash("zz" + valid[2:])
	require.Error(t, err)
}

// TestGetInfoOverBufconn exercises a full unary call - marshal, send over an
// in-process transport, receive, unmarshal - through the registered JSON
// codec, using a generic stream handler in place of a generated GetInfo
// service implementation (the node's own .proto schema is out of scope here).
func TestGetInfoOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		req := &struct{}{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		return stream.SendMsg(&GetInfoResponse{ServerVersion: "v1.2.3", IsSynced: true})
	}))
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	c := &Client{conn: conn}
	resp, err := c.GetInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", resp.ServerVersion)
	require.True(t, resp.IsSynced)
}
