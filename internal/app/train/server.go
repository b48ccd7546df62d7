package train

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/gorilla/mux"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverData keeps data required for the metrics server
type serverData struct {
	Port   int
	health healthcheck.Handler
	ready  int32
}

func newServerData(port int) *serverData {
	res := &serverData{Port: port, health: healthcheck.NewHandler()}
	res.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	res.health.AddReadinessCheck("training", func() error {
		if atomic.LoadInt32(&res.ready) == 0 {
			return errors.New("Training not started")
		}
		return nil
	})
	return res
}

func (d *serverData) setReady() {
	atomic.StoreInt32(&d.ready, 1)
}

//startWebServer starts the HTTP service in background, stops it on ctx done
func startWebServer(ctx context.Context, data *serverData) <-chan error {
	portStr := strconv.Itoa(data.Port)
	cmdapp.Log.Infof("Starting HTTP service at %s", portStr)
	srv := &http.Server{Addr: ":" + portStr, Handler: newRouter(data)}
	res := make(chan error, 1)
	go func() {
		defer close(res)
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			res <- errors.Wrap(err, "Can't start HTTP listener at port "+portStr)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cmdapp.LogIf(srv.Shutdown(sctx))
	}()
	return res
}

//newRouter creates the router for HTTP service
func newRouter(data *serverData) *mux.Router {
	router := mux.NewRouter()
	router.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	if data.health != nil {
		router.Methods("GET").Path("/live").HandlerFunc(data.health.LiveEndpoint)
		router.Methods("GET").Path("/ready").HandlerFunc(data.health.ReadyEndpoint)
	}
	return router
}
