package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MathAgent/internal/agent"
	"MathAgent/internal/auth"
	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/observability/metrics"
	"MathAgent/internal/task"
	"MathAgent/internal/tools"
	"MathAgent/pkg/logger"
)

// Runner 同步执行一次会话。
type Runner interface {
	Run(ctx context.Context, req agent.Request) *agent.Result
}

// Server 负责暴露 REST 接口，供外部驱动智能体执行。
type Server struct {
	addr            string
	runner          Runner
	tasks           *task.Service
	catalog         *tools.Catalog
	metrics         *metrics.Registry
	metricsPath     string
	auth            *auth.Service
	corsOrigins     []string
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option 调整 Server 的可选行为。
type Option func(*Server)

// WithTaskService 启用 /api/v1/tasks 异步接口。
func WithTaskService(svc *task.Service) Option {
	return func(s *Server) { s.tasks = svc }
}

// WithCatalog 启用 /api/v1/tools 目录接口。
func WithCatalog(catalog *tools.Catalog) Option {
	return func(s *Server) { s.catalog = catalog }
}

// WithMetrics 记录请求指标，path 非空时同时挂载指标端点。
func WithMetrics(reg *metrics.Registry, path string) Option {
	return func(s *Server) {
		s.metrics = reg
		s.metricsPath = path
	}
}

// WithAuth 要求业务接口携带 API Key，/health 与指标端点不受影响。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithCORSOrigins 设置允许跨域访问的来源，"*" 表示全部。
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = append([]string(nil), origins...) }
}

// WithRequestTimeout 限制同步查询的执行时间。
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.requestTimeout = timeout }
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = timeout }
}

// WithLogger 替换默认日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, runner Runner, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		runner:          runner,
		shutdownTimeout: 5 * time.Second,
		logger:          logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 返回装配好中间件的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /api/query", "query", s.handleQuery, auth.PermissionQuery)
	s.route(mux, "GET /health", "health", s.handleHealth)
	s.route(mux, "POST /api/v1/tasks", "tasks_create", s.handleCreateTask, auth.PermissionTasksWrite)
	s.route(mux, "GET /api/v1/tasks", "tasks_list", s.handleListTasks, auth.PermissionTasksRead)
	s.route(mux, "GET /api/v1/tasks/stats", "tasks_stats", s.handleTaskStats, auth.PermissionTasksRead)
	s.route(mux, "GET /api/v1/tasks/{id}", "tasks_detail", s.handleTaskDetail, auth.PermissionTasksRead)
	s.route(mux, "GET /api/v1/tools", "tools", s.handleTools, auth.PermissionToolsRead)
	if s.metrics != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
	}
	return chain(mux, s.withLogging, s.withCORS)
}

// route 注册路由；perms 非空时经过认证中间件。
func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc, perms ...string) {
	var handler http.Handler = h
	if len(perms) > 0 && s.auth.Enabled() {
		handler = s.auth.Middleware(perms...)(handler)
	}
	mux.Handle(pattern, s.instrument(name, handler))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type queryRequest struct {
	Query       string            `json:"query"`
	Preferences map[string]string `json:"preferences,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
}

func (r queryRequest) toAgent() agent.Request {
	return agent.Request{
		Query:       strings.TrimSpace(r.Query),
		Preferences: r.Preferences,
		SessionID:   strings.TrimSpace(r.SessionID),
	}
}

// QueryResponse 是 /api/query 的响应体。
type QueryResponse struct {
	Status       string             `json:"status"`
	Result       string             `json:"result"`
	Query        string             `json:"query"`
	Answer       string             `json:"answer"`
	Success      bool               `json:"success"`
	FullResponse string             `json:"full_response"`
	SessionID    string             `json:"session_id"`
	Message      string             `json:"message,omitempty"`
	Counter      int                `json:"counter"`
	Trace        []agent.TraceEntry `json:"trace"`
	Diagnostics  []agent.Diagnostic `json:"diagnostics,omitempty"`
}

func newQueryResponse(res *agent.Result) QueryResponse {
	out := QueryResponse{
		Status:       "success",
		Result:       res.Answer,
		Query:        res.Query,
		Answer:       res.Answer,
		Success:      res.Success,
		FullResponse: "Query: " + res.Query + "\nResult: " + res.Answer,
		SessionID:    res.SessionID,
		Counter:      res.Counter,
		Trace:        res.Trace,
		Diagnostics:  res.Diagnostics,
	}
	if out.Trace == nil {
		out.Trace = []agent.TraceEntry{}
	}
	if !res.Success {
		out.Status = "error"
		if len(res.Diagnostics) > 0 {
			out.Message = res.Diagnostics[0].Message
		}
	}
	return out
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Agent 未初始化")
		return
	}
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	req := body.toAgent()
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	res := s.runner.Run(ctx, req)
	if res == nil {
		writeError(w, http.StatusInternalServerError, "Agent failed to process query")
		return
	}
	writeJSON(w, http.StatusOK, newQueryResponse(res))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	t, err := s.tasks.Submit(r.Context(), body.toAgent())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "任务服务未初始化")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "缺少任务 ID")
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, []tools.Spec{})
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Specs())
}

// parseListOptions 解析 limit、offset、status、has_result、since、until、order 与 q。
func parseListOptions(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("limit 必须为整数")
		}
		opts = append(opts, task.WithLimit(n))
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("offset 必须为整数")
		}
		opts = append(opts, task.WithOffset(n))
	}
	if raw := q["status"]; len(raw) > 0 {
		var statuses []task.Status
		for _, item := range raw {
			for _, part := range strings.Split(item, ",") {
				status := task.Status(strings.ToLower(strings.TrimSpace(part)))
				if status == "" {
					continue
				}
				if !task.IsValidStatus(status) {
					return nil, errors.New("未知的任务状态: " + string(status))
				}
				statuses = append(statuses, status)
			}
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := q.Get("has_result"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("has_result 必须为布尔值")
		}
		opts = append(opts, task.WithResultPresence(v))
	}
	for key, apply := range map[string]func(time.Time) task.ListOption{
		"since": task.WithUpdatedSince,
		"until": task.WithUpdatedUntil,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		ts, err := parseTime(raw)
		if err != nil {
			return nil, errors.New(key + " 必须为 RFC3339 时间或 Unix 秒")
		}
		opts = append(opts, apply(ts))
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	default:
		return nil, errors.New("order 只支持 asc 或 desc")
	}
	if raw := q.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	return opts, nil
}

func parseTime(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("请求处理失败", slog.Any("error", err))
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(xerrors.CodeOf(err)),
	})
}

func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case task.CodeTaskNotFound, xerrors.CodeNotFound:
		return http.StatusNotFound
	case task.CodeTaskValidation, xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case task.CodeTaskConflict, task.CodeTaskCompleted, xerrors.CodeConflict:
		return http.StatusConflict
	case task.CodeTaskPublish, xerrors.CodeQueueFailure, xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
