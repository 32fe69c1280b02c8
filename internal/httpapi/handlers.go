package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/errs"
	"github.com/synapse-vision/synapse-core/internal/settings"
)

func intParam(req *http.Request, name string) (int, error) {
	return strconv.Atoi(paramsOf(req).ByName(name))
}

func (s *Server) listCameras(res http.ResponseWriter, req *http.Request) {
	indices := s.Store.CameraIndices()
	out := make([]config.CameraConfig, 0, len(indices))
	for _, idx := range indices {
		if cc, ok := s.Store.GetCameraConfig(idx); ok {
			out = append(out, cc)
		}
	}
	respond(res, out, http.StatusOK)
}

func (s *Server) getCamera(res http.ResponseWriter, req *http.Request) {
	index, err := intParam(req, "index")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	cc, ok := s.Store.GetCameraConfig(index)
	if !ok {
		respond(res, errs.ErrBadIndex, http.StatusNotFound)
		return
	}

	respond(res, cc, http.StatusOK)
}

func (s *Server) putCamera(res http.ResponseWriter, req *http.Request) {
	index, err := intParam(req, "index")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	var cc config.CameraConfig
	if err := json.NewDecoder(req.Body).Decode(&cc); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	s.Store.SetCameraConfig(index, cc)
	if err := s.Store.Save(); err != nil {
		respond(res, err, http.StatusInternalServerError)
		return
	}

	respond(res, nil, http.StatusNoContent)
}

func (s *Server) streamCamera(res http.ResponseWriter, req *http.Request) {
	index, err := intParam(req, "index")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	stream, ok := s.Cameras.Stream(index)
	if !ok {
		respond(res, errs.ErrBadIndex, http.StatusNotFound)
		return
	}

	stream.ServeHTTP(res, req)
}

func (s *Server) listBindings(res http.ResponseWriter, req *http.Request) {
	respond(res, s.Manager.Bindings(), http.StatusOK)
}

type bindingRequest struct {
	PipelineIndex int `json:"pipelineIndex"`
}

func (s *Server) putBinding(res http.ResponseWriter, req *http.Request) {
	cameraIndex, err := intParam(req, "camera")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	var body bindingRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.Manager.SetPipelineByIndex(cameraIndex, body.PipelineIndex); err != nil {
		respond(res, err, httpStatusFor(err))
		return
	}

	respond(res, nil, http.StatusNoContent)
}

type pipelineSummary struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

func (s *Server) listPipelines(res http.ResponseWriter, req *http.Request) {
	indices := s.Loader.Indices()
	out := make([]pipelineSummary, 0, len(indices))
	for _, idx := range indices {
		name, _ := s.Loader.Name(idx)
		typeName, _ := s.Loader.GetPipelineTypeByIndex(idx)
		out = append(out, pipelineSummary{Index: idx, Name: name, Type: typeName})
	}
	respond(res, out, http.StatusOK)
}

func (s *Server) getPipelineSchema(res http.ResponseWriter, req *http.Request) {
	index, err := intParam(req, "index")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	values, ok := s.Loader.GetPipelineSettings(index)
	if !ok {
		respond(res, errs.ErrBadIndex, http.StatusNotFound)
		return
	}

	respond(res, values.Schema().Describe(), http.StatusOK)
}

func (s *Server) getPipelineSettings(res http.ResponseWriter, req *http.Request) {
	index, err := intParam(req, "index")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	values, ok := s.Loader.GetPipelineSettings(index)
	if !ok {
		respond(res, errs.ErrBadIndex, http.StatusNotFound)
		return
	}

	out := make(map[string]interface{})
	for key, value := range values.ToDict() {
		out[key] = value.ToInterface()
	}
	respond(res, out, http.StatusOK)
}

func (s *Server) putCameraSetting(res http.ResponseWriter, req *http.Request) {
	cameraIndex, err := intParam(req, "index")
	if err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}
	key := paramsOf(req).ByName("key")

	var raw interface{}
	if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	kind, ok := s.settingKind(cameraIndex, key)
	if !ok {
		respond(res, errs.ErrUnknownSetting, http.StatusNotFound)
		return
	}

	value, err := settings.FromInterface(kind, raw)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.Manager.UpdateSetting(cameraIndex, key, value); err != nil {
		respond(res, err, httpStatusFor(err))
		return
	}

	respond(res, nil, http.StatusNoContent)
}

// settingKind resolves key's declared Kind from the pipeline currently
// bound to cameraIndex, needed because settings.FromInterface can't infer a
// Kind from a bare decoded JSON scalar on its own.
func (s *Server) settingKind(cameraIndex int, key string) (settings.Kind, bool) {
	binding, ok := s.Manager.Bindings()[cameraIndex]
	if !ok {
		return 0, false
	}
	values, ok := s.Loader.GetPipelineSettings(binding)
	if !ok {
		return 0, false
	}
	for _, setting := range values.Schema() {
		if setting.Key == key {
			return setting.Default.Kind, true
		}
	}
	return 0, false
}

func httpStatusFor(err error) int {
	e, ok := err.(*errs.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case errs.KindBadIndex, errs.KindNoPipeline:
		return http.StatusNotFound
	case errs.KindPipelineBusy:
		return http.StatusConflict
	case errs.KindInvalidSetting, errs.KindUnknownSetting:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
