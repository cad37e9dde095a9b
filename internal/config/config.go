package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"MathAgent/internal/auth"
	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/mail"
	storagemysql "MathAgent/internal/storage/mysql"
	storageredis "MathAgent/internal/storage/redis"
	"MathAgent/internal/task"
	"MathAgent/pkg/logger"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 MATHAGENT_LLM_PROVIDER。
const EnvPrefix = "MATHAGENT"

// Config 描述了 MathAgent 在启动阶段需要加载的全部配置。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   logger.Config   `mapstructure:"logging"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	TaskQueue TaskQueueConfig `mapstructure:"task_queue"`
	TaskStore TaskStoreConfig `mapstructure:"task_store"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Auth            auth.Config   `mapstructure:"auth"`
}

// AgentConfig 对应编排循环的参数。
type AgentConfig struct {
	MaxSteps              int           `mapstructure:"max_steps"`
	RetrievalTopK         int           `mapstructure:"retrieval_top_k"`
	MinRelevance          float64       `mapstructure:"min_relevance"`
	NonComputationalTools []string      `mapstructure:"non_computational_tools"`
	CollaboratorTimeout   time.Duration `mapstructure:"collaborator_timeout"`
	PersistTimeout        time.Duration `mapstructure:"persist_timeout"`
	KnowledgeSource       string        `mapstructure:"knowledge_source"`
	KnowledgeMaxResults   int           `mapstructure:"knowledge_max_results"`
}

// MemoryConfig 选择记忆状态的持久化后端。
type MemoryConfig struct {
	Sink  string              `mapstructure:"sink"`
	Dir   string              `mapstructure:"dir"`
	Redis RedisSinkConfig     `mapstructure:"redis"`
	MySQL storagemysql.Config `mapstructure:"mysql"`
}

// RedisSinkConfig 描述 Redis 记忆后端。
type RedisSinkConfig struct {
	storageredis.Config `mapstructure:",squash"`
	Prefix              string        `mapstructure:"prefix"`
	TTL                 time.Duration `mapstructure:"ttl"`
}

// LLMConfig 用于配置感知与规划协作方。
type LLMConfig struct {
	Provider string             `mapstructure:"provider"`
	OpenAI   OpenAIConfig       `mapstructure:"openai"`
	Gemini   GeminiConfig       `mapstructure:"gemini"`
	Python   PythonBridgeConfig `mapstructure:"python_bridge"`
	Scripted ScriptedConfig     `mapstructure:"scripted"`
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	APIKeyEnv      string  `mapstructure:"api_key_env"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Temperature    float64 `mapstructure:"temperature"`
}

// Timeout 返回请求超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GeminiConfig 描述 Gemini 接口，API Key 与 Vertex 项目二选一。
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	Model       string  `mapstructure:"model"`
	Project     string  `mapstructure:"project"`
	Location    string  `mapstructure:"location"`
	Temperature float32 `mapstructure:"temperature"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `mapstructure:"python_executable"`
	ScriptPath       string `mapstructure:"script_path"`
	WorkingDir       string `mapstructure:"working_dir"`
}

// ScriptedConfig 指向离线运行用的 YAML 脚本。
type ScriptedConfig struct {
	Path string `mapstructure:"path"`
}

// ToolsConfig 描述需要外部资源的工具。
type ToolsConfig struct {
	SalaryDB  string     `mapstructure:"salary_db"`
	SlidesDir string     `mapstructure:"slides_dir"`
	Mail      MailConfig `mapstructure:"mail"`
}

// MailConfig 在 SMTP 参数之外支持从环境变量读取账号信息。
type MailConfig struct {
	mail.Config   `mapstructure:",squash"`
	UsernameEnv   string `mapstructure:"username_env"`
	PasswordEnv   string `mapstructure:"password_env"`
	RecipientsEnv string `mapstructure:"recipients_env"`
}

// Enabled 判断邮件账号是否已配置。
func (c MailConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// TaskQueueConfig 选择异步会话的队列实现。
type TaskQueueConfig struct {
	Driver   string                `mapstructure:"driver"`
	Workers  int                   `mapstructure:"workers"`
	Retries  int                   `mapstructure:"retries"`
	Buffer   int                   `mapstructure:"buffer"`
	Redis    task.RedisQueueConfig `mapstructure:"redis"`
	RabbitMQ task.RabbitMQConfig   `mapstructure:"rabbitmq"`
}

// TaskStoreConfig 选择任务状态存储。
type TaskStoreConfig struct {
	Driver string              `mapstructure:"driver"`
	MySQL  storagemysql.Config `mapstructure:"mysql"`
}

// MetricsConfig 控制 Prometheus 指标暴露。
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	// Address 非空时在独立端口暴露指标，否则挂在 API 服务上。
	Address string `mapstructure:"address"`
}

// AlertingConfig 配置任务失败告警。
type AlertingConfig struct {
	Email         []string `mapstructure:"email"`
	SubjectPrefix string   `mapstructure:"subject_prefix"`
	MinSeverity   string   `mapstructure:"min_severity"`
}

// DefaultNonComputationalTools 是结果不计入最终答案的工具。
var DefaultNonComputationalTools = []string{
	"send_gmail",
	"open_powerpoint",
	"draw_rectangle",
	"add_text_in_powerpoint",
	"close_powerpoint",
}

// Load 读取配置文件并叠加环境变量。path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir := "."
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, xerrors.Wrap(xerrors.CodeNotFound, err, "配置文件不存在")
			}
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析配置失败")
		}
		baseDir = filepath.Dir(path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析配置失败")
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.auth.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})

	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.retrieval_top_k", 5)
	v.SetDefault("agent.min_relevance", 0.3)
	v.SetDefault("agent.non_computational_tools", DefaultNonComputationalTools)
	v.SetDefault("agent.collaborator_timeout", 10*time.Second)
	v.SetDefault("agent.persist_timeout", 10*time.Second)
	v.SetDefault("agent.knowledge_source", "")
	v.SetDefault("agent.knowledge_max_results", 3)

	v.SetDefault("memory.sink", "file")
	v.SetDefault("memory.dir", "logs")
	v.SetDefault("memory.redis.address", "")
	v.SetDefault("memory.redis.prefix", "mathagent:memory:")
	v.SetDefault("memory.redis.ttl", 7*24*time.Hour)
	v.SetDefault("memory.mysql.dsn", "")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.openai.model", "")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	v.SetDefault("llm.python_bridge.python_executable", "python3")
	v.SetDefault("llm.python_bridge.script_path", "")
	v.SetDefault("llm.scripted.path", "")

	v.SetDefault("tools.salary_db", "")
	v.SetDefault("tools.slides_dir", "slides")
	v.SetDefault("tools.mail.host", "smtp.gmail.com")
	v.SetDefault("tools.mail.port", 465)
	v.SetDefault("tools.mail.username", "")
	v.SetDefault("tools.mail.password", "")
	v.SetDefault("tools.mail.username_env", "GMAIL_ADDRESS")
	v.SetDefault("tools.mail.password_env", "GMAIL_APP_PASSWORD")
	v.SetDefault("tools.mail.recipients_env", "RECIPIENT_EMAIL")

	v.SetDefault("task_queue.driver", "memory")
	v.SetDefault("task_queue.workers", 4)
	v.SetDefault("task_queue.retries", 3)
	v.SetDefault("task_queue.buffer", 1024)
	v.SetDefault("task_queue.redis.address", "")
	v.SetDefault("task_queue.rabbitmq.url", "")

	v.SetDefault("task_store.driver", "memory")
	v.SetDefault("task_store.mysql.dsn", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.address", "")

	v.SetDefault("alerting.email", []string{})
	v.SetDefault("alerting.min_severity", "warning")
}

// applyDefaults 解析 *_env 间接引用，并把相对路径转换为相对配置文件目录。
func (c *Config) applyDefaults(baseDir string) {
	if c.LLM.OpenAI.APIKey == "" && c.LLM.OpenAI.APIKeyEnv != "" {
		c.LLM.OpenAI.APIKey = strings.TrimSpace(os.Getenv(c.LLM.OpenAI.APIKeyEnv))
	}
	if c.LLM.Gemini.APIKey == "" && c.LLM.Gemini.APIKeyEnv != "" {
		c.LLM.Gemini.APIKey = strings.TrimSpace(os.Getenv(c.LLM.Gemini.APIKeyEnv))
	}

	m := &c.Tools.Mail
	if m.Username == "" && m.UsernameEnv != "" {
		m.Username = strings.TrimSpace(os.Getenv(m.UsernameEnv))
	}
	if m.Password == "" && m.PasswordEnv != "" {
		m.Password = strings.TrimSpace(os.Getenv(m.PasswordEnv))
	}
	if len(m.To) == 0 && m.RecipientsEnv != "" {
		m.To = splitList(os.Getenv(m.RecipientsEnv))
	}

	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	}
	c.LLM.Python.WorkingDir = resolve(baseDir, c.LLM.Python.WorkingDir)
	c.LLM.Scripted.Path = resolve(baseDir, c.LLM.Scripted.Path)
	c.Agent.KnowledgeSource = resolve(baseDir, c.Agent.KnowledgeSource)
	c.Memory.Dir = resolve(baseDir, c.Memory.Dir)
	c.Tools.SalaryDB = resolve(baseDir, c.Tools.SalaryDB)
	c.Tools.SlidesDir = resolve(baseDir, c.Tools.SlidesDir)

	if len(c.Agent.NonComputationalTools) == 0 {
		c.Agent.NonComputationalTools = append([]string(nil), DefaultNonComputationalTools...)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate 检查枚举取值。
func (c *Config) Validate() error {
	checks := []struct {
		field, value string
		allowed      []string
	}{
		{"memory.sink", c.Memory.Sink, []string{"file", "redis", "mysql", "none"}},
		{"llm.provider", c.LLM.Provider, []string{"openai", "gemini", "python_bridge", "scripted"}},
		{"task_queue.driver", c.TaskQueue.Driver, []string{"memory", "redis", "rabbitmq"}},
		{"task_store.driver", c.TaskStore.Driver, []string{"memory", "mysql"}},
	}
	for _, chk := range checks {
		if !contains(chk.allowed, chk.value) {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "%s 不支持的取值: %q", chk.field, chk.value)
		}
	}
	if c.Agent.MaxSteps <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "agent.max_steps 必须为正数")
	}
	return nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
