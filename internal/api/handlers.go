package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/core/preset"
	"lightning-yield-projector/internal/core/projection"
	"lightning-yield-projector/internal/core/session"
	"lightning-yield-projector/internal/core/validate"
	"lightning-yield-projector/internal/history"
	"lightning-yield-projector/internal/price"
	"lightning-yield-projector/internal/stats/delta"
)

// SourceRequest 请求体中显式给出价格时的来源名称
const SourceRequest = "request"

// ProjectionRequest 投影请求
type ProjectionRequest struct {
	model.RawInput
	// Preset 可选情景，覆盖配置比例、收益率与 CAGR
	Preset string `json:"preset,omitempty"`
	// PriceUSD 可选期初价格；缺省使用最新报价
	PriceUSD *float64 `json:"price_usd,omitempty"`
}

// ProjectionResponse 投影响应
type ProjectionResponse struct {
	RunID  string                  `json:"run_id,omitempty"`
	Price  price.Quote             `json:"price"`
	Result *model.ProjectionResult `json:"result"`
}

// CompareResponse 策略对比响应
// Before 为请求的策略，After 为切换后的策略
type CompareResponse struct {
	Price  price.Quote             `json:"price"`
	Before *model.ProjectionResult `json:"before"`
	After  *model.ProjectionResult `json:"after"`
	Deltas delta.Deltas            `json:"deltas"`
}

// ValidationResponse 输入校验失败响应
type ValidationResponse struct {
	Errors validate.ErrorMap `json:"errors"`
	// First 第一个出错字段
	First string `json:"first"`
	// Focus 第一个出错字段的界面焦点 ID
	Focus string `json:"focus"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"presets":  preset.All(),
		"defaults": preset.DefaultInput(),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.prices.Latest())
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	in, quote, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	res, err := projection.Project(in, quote.PriceUSD)
	s.metrics.RecordProjection(in.Policy.String(), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := ProjectionResponse{Price: quote, Result: res}
	if s.runs != nil {
		run := model.NewRun(res, quote.Source, s.now())
		if err := s.runs.Save(r.Context(), run); err != nil {
			s.logger.Warn("保存运行记录失败", zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	in, quote, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	sess := session.New(in, quote.PriceUSD)
	before, err := sess.Calculate()
	s.metrics.RecordProjection(sess.Policy().String(), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	toggled := sess.Policy().Toggle()
	after, err := sess.SetPolicy(toggled)
	s.metrics.RecordProjection(toggled.String(), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CompareResponse{
		Price:  quote,
		Before: before.Current,
		After:  after.Current,
		Deltas: after.Deltas,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "运行历史未启用")
		return
	}
	limit := s.listLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxListLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit 必须为 1-%d 之间的整数", MaxListLimit))
			return
		}
		limit = n
	}

	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("查询运行列表失败", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "查询运行列表失败")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "运行历史未启用")
		return
	}
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, history.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error("读取运行记录失败", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "读取运行记录失败")
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

// decodeInput 解析并校验请求，失败时已写入响应
func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (model.ProjectionInput, price.Quote, bool) {
	var req ProjectionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("无效的请求体: %v", err))
		return model.ProjectionInput{}, price.Quote{}, false
	}

	raw := req.RawInput
	if req.Preset != "" {
		var err error
		if raw, err = preset.Apply(raw, req.Preset); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return model.ProjectionInput{}, price.Quote{}, false
		}
	}
	if raw.Policy != "" {
		p, err := model.ParsePolicy(raw.Policy.String())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return model.ProjectionInput{}, price.Quote{}, false
		}
		raw.Policy = p
	}

	quote := s.prices.Latest()
	if req.PriceUSD != nil {
		if !(*req.PriceUSD > 0) {
			writeError(w, http.StatusBadRequest, "price_usd 必须大于 0")
			return model.ProjectionInput{}, price.Quote{}, false
		}
		quote = price.Quote{PriceUSD: *req.PriceUSD, Source: SourceRequest, FetchedAt: s.now().UTC()}
	}

	in, errs := validate.Build(raw)
	if !errs.Valid() {
		s.metrics.RecordValidationFailures(errs.Fields())
		first := errs.First()
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Errors: errs,
			First:  first,
			Focus:  validate.FieldID(first),
		})
		return model.ProjectionInput{}, price.Quote{}, false
	}
	return in, quote, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
