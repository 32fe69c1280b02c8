// Package httpapi is the operator-facing HTTP surface: camera and pipeline
// config CRUD, pipeline settings-schema introspection, camera-to-pipeline
// binding control, and MJPEG preview streams, grounded on the teacher's
// server package (httprouter + mjpeg) and generalized from its single fixed
// camera/pipeline to the multi-camera binding model.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/synapse-vision/synapse-core/internal/camerahandler"
	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/runtime"
)

// Server is the HTTP API: a thin read/write facade over the Configuration
// Store, the Camera Handler's preview streams, the Pipeline Loader, and the
// Runtime Manager's binding/settings control.
type Server struct {
	Addr string

	Store   *config.Store
	Cameras *camerahandler.Handler
	Loader  *pipeline.Loader
	Manager *runtime.Manager
	Logger  *logrus.Entry
}

// Run builds the router and serves until ctx is canceled, matching the
// teacher's httpServer-with-timeouts shape in server/server.go.
func (s *Server) Run(ctx context.Context) error {
	mux := httprouter.New()

	mux.HandlerFunc(http.MethodGet, "/cameras", s.listCameras)
	mux.HandlerFunc(http.MethodGet, "/cameras/:index", s.getCamera)
	mux.HandlerFunc(http.MethodPut, "/cameras/:index", s.putCamera)
	mux.Handler(http.MethodGet, "/cameras/:index/stream", http.HandlerFunc(s.streamCamera))

	mux.HandlerFunc(http.MethodGet, "/bindings", s.listBindings)
	mux.HandlerFunc(http.MethodPut, "/bindings/:camera", s.putBinding)

	mux.HandlerFunc(http.MethodGet, "/pipelines", s.listPipelines)
	mux.HandlerFunc(http.MethodGet, "/pipelines/:index/schema", s.getPipelineSchema)
	mux.HandlerFunc(http.MethodGet, "/pipelines/:index/settings", s.getPipelineSettings)

	mux.HandlerFunc(http.MethodPut, "/cameras/:index/settings/:key", s.putCameraSetting)

	httpServer := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    4096,
	}

	listenErrs := make(chan error, 1)
	go func() {
		s.Logger.WithField("addr", s.Addr).Info("serving http")
		listenErrs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-listenErrs:
		return err
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}

func paramsOf(req *http.Request) httprouter.Params {
	return httprouter.ParamsFromContext(req.Context())
}
