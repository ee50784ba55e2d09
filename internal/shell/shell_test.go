package shell

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corefoundry/substrate/internal/app"
)

func TestParseLongAndShortOptionsAndPositionals(t *testing.T) {
	name, args, flags := parse("threads positional --detail -x=y -z")
	assert.Equal(t, "threads", name)
	assert.Equal(t, []string{"positional"}, args)
	assert.Equal(t, "true", flags["detail"])
	assert.Equal(t, "y", flags["x"])
	assert.Equal(t, "true", flags["z"])
}

func TestParseLongOptionWithSpaceSeparatedValue(t *testing.T) {
	name, _, flags := parse("config --section app")
	assert.Equal(t, "config", name)
	assert.Equal(t, "app", flags["section"])
}

func TestExecuteUnknownCommandFails(t *testing.T) {
	sh := New(nil)
	res := sh.Execute("nope")
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}

func TestExecuteAppRequiredCommandWithoutAppFails(t *testing.T) {
	sh := New(nil)
	res := sh.Execute("status")
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}

func TestHelpWorksWithoutApp(t *testing.T) {
	sh := New(nil)
	res := sh.Execute("help")
	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "status")
}

func TestExecuteHonorsCommandTimeoutWithoutCancellingHandler(t *testing.T) {
	sh := New(nil)
	require.NoError(t, sh.Configure(Config{CommandTimeout: 50 * time.Millisecond}))

	handlerDone := make(chan struct{})
	sh.Register(Command{
		Name:        "slow",
		RequiresApp: false,
		Handler: func(ctx context.Context, c *Context) Result {
			time.Sleep(200 * time.Millisecond)
			close(handlerDone)
			return Result{Success: true}
		},
	})

	start := time.Now()
	res := sh.Execute("slow")
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Contains(t, res.Err.Error(), "timed out")
	assert.Less(t, elapsed, 100*time.Millisecond)

	select {
	case <-handlerDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("handler never completed")
	}
}

func TestStatusAndShutdownAgainstRealApplication(t *testing.T) {
	a := app.New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))
	defer a.Stop()

	sh := New(nil)
	require.NoError(t, sh.Start(a))
	defer sh.Stop()

	res := sh.Execute("status")
	require.True(t, res.Success)
	assert.Contains(t, res.Output, "running")

	res = sh.Execute("shutdown")
	assert.True(t, res.Success)
}

func TestConfigureRejectedWhileRunning(t *testing.T) {
	a := app.New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))
	defer a.Stop()

	sh := New(nil)
	require.NoError(t, sh.Start(a))
	defer sh.Stop()

	assert.Error(t, sh.Configure(Config{}))
}

func TestTCPSessionBannerPromptAndExit(t *testing.T) {
	a := app.New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))
	defer a.Stop()

	sh := New(nil)
	require.NoError(t, sh.Configure(Config{TCPEnabled: true, TCPAddress: "127.0.0.1:0"}))
	require.NoError(t, sh.Start(a))
	defer sh.Stop()

	addr := sh.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	banner, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, banner, "substrate shell session")

	prompt := make([]byte, 2)
	_, err = reader.Read(prompt)
	require.NoError(t, err)
	assert.Equal(t, "> ", string(prompt))

	_, err = conn.Write([]byte("help\n"))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "Available commands")

	_, err = conn.Write([]byte("exit\n"))
	require.NoError(t, err)
	rest, err := io.ReadAll(reader) // returns once the server closes the connection
	require.NoError(t, err)
	assert.Contains(t, string(rest), "bye")
}
