package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleen/portfolio/internal/daemon"
)

const serveCSV = `Repo,GitHub Org,Description,Featured Project,Resume Worthy,Project Type,Hidden
astrds,whaleen,Asteroids clone,yes,yes,game,
tiling,whaleen,Video tiling,no,yes,tool,yes
`

func TestPidFile_Path(t *testing.T) {
	dir, _ := testEnv(t)
	assert.Equal(t, filepath.Join(dir, "portfolio-serve.pid"), pidFile().Path)
}

func TestServeLogPath(t *testing.T) {
	dir, _ := testEnv(t)
	assert.Equal(t, filepath.Join(dir, "portfolio-serve.log"), serveLogPath())
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	_, out := testEnv(t)

	require.NoError(t, serveStatusRun())
	assert.Contains(t, out.String(), "not running")
}

func TestServeStatusRun_Running(t *testing.T) {
	dir, out := testEnv(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "portfolio-serve.pid"))
	require.NoError(t, pf.Write(1, "projects.csv"))

	require.NoError(t, serveStatusRun())
	assert.Contains(t, out.String(), "running")
	assert.Contains(t, out.String(), "http://localhost:1")
	assert.Contains(t, out.String(), "projects.csv")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStopRun_RemovesStalePIDFile(t *testing.T) {
	dir, _ := testEnv(t)
	pf := daemon.NewPIDFile(filepath.Join(dir, "portfolio-serve.pid"))
	require.NoError(t, pf.WriteState(daemon.State{PID: 999999999}))

	err := serveStopRun()
	require.Error(t, err)
	_, statErr := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestServeStopRun_StopsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals differ on windows")
	}
	dir, out := testEnv(t)

	child := exec.Command("sleep", "30")
	require.NoError(t, child.Start())
	done := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = child.Process.Kill()
		<-done
	})

	pf := daemon.NewPIDFile(filepath.Join(dir, "portfolio-serve.pid"))
	require.NoError(t, pf.WriteState(daemon.State{PID: child.Process.Pid, Port: 1}))

	require.NoError(t, serveStopRun())
	assert.Contains(t, out.String(), "Server stopped")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process still alive after stop")
	}
	_, err := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir, _ := testEnv(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "portfolio-serve.pid"))
	require.NoError(t, pf.Write(3001, ""))

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeStartRun_DryRun(t *testing.T) {
	dir, out := testEnv(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, serveStartRun())
	assert.Contains(t, out.String(), "Would run")
	_, err := os.Stat(filepath.Join(dir, "portfolio-serve.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestServeRun_AlreadyRunning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals differ on windows")
	}
	dir, _ := testEnv(t)

	child := exec.Command("sleep", "30")
	require.NoError(t, child.Start())
	t.Cleanup(func() {
		_ = child.Process.Kill()
		_ = child.Wait()
	})
	pf := daemon.NewPIDFile(filepath.Join(dir, "portfolio-serve.pid"))
	require.NoError(t, pf.WriteState(daemon.State{PID: child.Process.Pid}))

	err := serveRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

// startServeApp runs a server on a random port and stops it at cleanup.
func startServeApp(t *testing.T) (*serveApp, string) {
	t.Helper()
	app, err := newServeApp(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", app.Port())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	return app, base
}

func projectCount(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Total
}

func TestServeApp_ServesCatalog(t *testing.T) {
	dir, _ := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.csv"), []byte(serveCSV), 0o644))
	viper.Set("port", 0)
	viper.Set("watch.enabled", false)

	app, base := startServeApp(t)
	assert.Nil(t, app.watcher)

	// Hidden records are filtered from listings.
	assert.Equal(t, 1, projectCount(t, base+"/api/projects"))

	st, err := pidFile().ReadState()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, app.Port(), st.Port)
	assert.Equal(t, filepath.Join(dir, "projects.csv"), st.CSV)

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeApp_RemovesPIDFileOnShutdown(t *testing.T) {
	dir, _ := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.csv"), []byte(serveCSV), 0o644))
	viper.Set("port", 0)
	viper.Set("watch.enabled", false)

	app, err := newServeApp(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(pidFile().Path)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
	_, err = os.Stat(pidFile().Path)
	assert.True(t, os.IsNotExist(err))
}

func TestServeApp_StartsWithBrokenCatalog(t *testing.T) {
	testEnv(t)
	viper.Set("port", 0)
	viper.Set("watch.enabled", false)

	_, base := startServeApp(t)
	assert.Equal(t, 0, projectCount(t, base+"/api/projects"))
}

func TestServeApp_ReloadsOnFileChange(t *testing.T) {
	dir, _ := testEnv(t)
	csvPath := filepath.Join(dir, "projects.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(serveCSV), 0o644))
	viper.Set("port", 0)
	viper.Set("watch.enabled", true)
	viper.Set("watch.debounce", "20ms")

	app, base := startServeApp(t)
	require.NotNil(t, app.watcher)
	select {
	case <-app.watcher.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	require.NoError(t, os.WriteFile(csvPath, []byte(serveCSV+"earth,nothingdao,Map game,yes,no,app,\n"), 0o644))

	assert.Eventually(t, func() bool {
		return projectCount(t, base+"/api/projects") == 2
	}, 5*time.Second, 25*time.Millisecond)
}

func TestServeRun_DryRun(t *testing.T) {
	_, out := testEnv(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, serveRun(context.Background()))
	assert.Contains(t, out.String(), "Would serve")
}
