package main

import (
	"context"
	"errors"
	"log/slog"

	"MathAgent/internal/agent"
	"MathAgent/internal/config"
	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/knowledge"
	"MathAgent/internal/llm"
	"MathAgent/internal/llm/gemini"
	"MathAgent/internal/llm/openai"
	"MathAgent/internal/llm/pythonbridge"
	"MathAgent/internal/llm/scripted"
	"MathAgent/internal/mail"
	"MathAgent/internal/memory"
	"MathAgent/internal/observability/alerting"
	"MathAgent/internal/observability/metrics"
	storagemysql "MathAgent/internal/storage/mysql"
	storageredis "MathAgent/internal/storage/redis"
	"MathAgent/internal/task"
	"MathAgent/internal/tools"
	"MathAgent/internal/tools/builtin"
	"MathAgent/internal/tools/salary"
	"MathAgent/internal/tools/slides"
	"MathAgent/pkg/logger"
)

// app 汇总一次进程运行所需的组件，closers 按逆序释放。
type app struct {
	cfg        *config.Config
	metrics    *metrics.Registry
	mailer     *mail.SMTPSender
	catalog    *tools.Catalog
	dispatcher *tools.Dispatcher
	agent      *agent.Agent
	closers    []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close 逆序释放资源。
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// wireTools 只装配工具目录，tools 子命令不需要协作方。
func wireTools(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	opts := builtin.Options{Recipients: cfg.Tools.Mail.To}
	if cfg.Tools.Mail.Enabled() {
		sender, err := mail.NewSMTPSender(cfg.Tools.Mail.Config)
		if err != nil {
			return nil, err
		}
		a.mailer = sender
		opts.Sender = sender
	}
	if cfg.Tools.SalaryDB != "" {
		store, err := salary.Open(ctx, cfg.Tools.SalaryDB)
		if err != nil {
			return nil, err
		}
		a.onClose(store.Close)
		opts.Salary = store
	}
	if cfg.Tools.SlidesDir != "" {
		opts.Studio = slides.NewStudio(cfg.Tools.SlidesDir)
	}

	catalog, err := builtin.Catalog(opts)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.catalog = catalog

	var dispatcherOpts []tools.DispatcherOption
	if a.metrics != nil {
		dispatcherOpts = append(dispatcherOpts, tools.WithObserver(a.metrics))
	}
	a.dispatcher = tools.NewDispatcher(catalog, dispatcherOpts...)
	return a, nil
}

// wireApp 在工具目录之上装配协作方、记忆后端与编排循环。
func wireApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a, err := wireTools(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := a.wireAgent(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireAgent(ctx context.Context) error {
	cfg := a.cfg
	collaborator, err := createCollaborator(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	sink, err := a.createSink(ctx)
	if err != nil {
		return err
	}

	opts := []agent.Option{
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithRetrieveLimit(cfg.Agent.RetrievalTopK),
		agent.WithMinRelevance(cfg.Agent.MinRelevance),
		agent.WithNonComputational(cfg.Agent.NonComputationalTools...),
		agent.WithLLMTimeout(cfg.Agent.CollaboratorTimeout),
		agent.WithPersistTimeout(cfg.Agent.PersistTimeout),
		agent.WithSink(sink),
	}
	if cfg.Agent.KnowledgeSource != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Agent.KnowledgeSource, cfg.Agent.KnowledgeMaxResults)
		if err != nil {
			return err
		}
		opts = append(opts, agent.WithKnowledgeProvider(provider))
	}
	if a.metrics != nil {
		opts = append(opts, agent.WithObserver(a.metrics))
	}
	a.agent = agent.New(collaborator, collaborator, a.dispatcher, opts...)
	return nil
}

// createCollaborator 根据配置选择感知与规划方。
func createCollaborator(ctx context.Context, cfg config.LLMConfig) (llm.Collaborator, error) {
	switch cfg.Provider {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Timeout:     cfg.OpenAI.Timeout(),
			Temperature: cfg.OpenAI.Temperature,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化 OpenAI 客户端失败")
		}
		return llm.NewOracle(client), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Project:     cfg.Gemini.Project,
			Location:    cfg.Gemini.Location,
			Temperature: cfg.Gemini.Temperature,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化 Gemini 客户端失败")
		}
		return llm.NewOracle(client), nil
	case "python_bridge":
		script := pythonbridge.ResolveScriptPath(cfg.Python.WorkingDir, cfg.Python.ScriptPath)
		client, err := pythonbridge.NewClient(cfg.Python.PythonExecutable, script, cfg.Python.WorkingDir)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化 Python Bridge 失败")
		}
		return client, nil
	case "scripted":
		client, err := scripted.Load(cfg.Scripted.Path)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "加载脚本失败")
		}
		return client, nil
	default:
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "不支持的 LLM provider: %s", cfg.Provider)
	}
}

// createSink 根据 memory.sink 选择记忆持久化后端。
func (a *app) createSink(ctx context.Context) (memory.Sink, error) {
	cfg := a.cfg.Memory
	switch cfg.Sink {
	case "file":
		return memory.NewFileSink(cfg.Dir)
	case "redis":
		client, err := storageredis.NewClient(ctx, cfg.Redis.Config)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		return memory.NewRedisSink(client, cfg.Redis.Prefix, cfg.Redis.TTL)
	case "mysql":
		db, err := storagemysql.OpenAndMigrate(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		a.onClose(db.Close)
		return storagemysql.NewFactSink(db)
	default:
		return memory.NopSink{}, nil
	}
}

// wireTasks 装配异步任务的存储、队列、服务与处理器。
func (a *app) wireTasks(ctx context.Context) (*task.Service, *task.Processor, error) {
	cfg := a.cfg
	var store task.Store
	switch cfg.TaskStore.Driver {
	case "mysql":
		db, err := storagemysql.OpenAndMigrate(ctx, cfg.TaskStore.MySQL)
		if err != nil {
			return nil, nil, err
		}
		s, err := task.NewMySQLStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store = s
	default:
		store = task.NewMemoryStore()
	}

	var queue task.Queue
	switch cfg.TaskQueue.Driver {
	case "redis":
		q, err := task.NewRedisQueue(ctx, cfg.TaskQueue.Redis)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		queue = q
	case "rabbitmq":
		q, err := task.NewRabbitMQQueue(cfg.TaskQueue.RabbitMQ)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		queue = q
	default:
		queue = task.NewMemoryQueue(cfg.TaskQueue.Buffer)
	}

	service := task.NewService(store, queue, cfg.TaskQueue.Retries)
	a.onClose(service.Close)

	processor := task.NewProcessor(a.agent, store, queue, queue,
		task.WithWorkerCount(cfg.TaskQueue.Workers),
		task.WithAlertDispatcher(a.alerting()),
	)
	return service, processor, nil
}

// alerting 构造告警分发器：审计日志总是启用，配置收件人且邮件可用时追加邮件渠道。
func (a *app) alerting() alerting.Dispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if len(a.cfg.Alerting.Email) > 0 {
		if a.mailer != nil {
			notifiers = append(notifiers, &alerting.EmailNotifier{
				Sender:        a.mailer,
				To:            a.cfg.Alerting.Email,
				SubjectPrefix: a.cfg.Alerting.SubjectPrefix,
			})
		} else {
			logger.L().Warn("已配置告警邮箱但 SMTP 未配置，仅写入审计日志",
				slog.Any("recipients", a.cfg.Alerting.Email))
		}
	}
	return alerting.NewFanout(notifiers,
		alerting.WithMinimumSeverity(xerrors.Severity(a.cfg.Alerting.MinSeverity)))
}
