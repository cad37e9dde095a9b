package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"os"
	"strings"

	"MathAgent/pkg/logger"
)

type credential struct {
	digest  [sha256.Size]byte
	subject Subject
}

// Service 负责校验 API 请求携带的 Bearer Key。
type Service struct {
	enabled     bool
	credentials []credential
	audit       *slog.Logger
}

// NewService 构造身份认证服务实例。未启用时所有请求直接放行。
func NewService(cfg Config) (*Service, error) {
	svc := &Service{enabled: cfg.Enabled, audit: logger.Audit()}
	if !cfg.Enabled {
		return svc, nil
	}
	for _, k := range cfg.Keys {
		key := strings.TrimSpace(k.Key)
		if key == "" && k.KeyEnv != "" {
			key = strings.TrimSpace(os.Getenv(k.KeyEnv))
		}
		if key == "" {
			continue
		}
		name := k.Name
		if name == "" {
			name = "anonymous"
		}
		svc.credentials = append(svc.credentials, credential{
			digest:  sha256.Sum256([]byte(key)),
			subject: Subject{Name: name, Permissions: clonePermissions(k.Permissions)},
		})
	}
	if len(svc.credentials) == 0 {
		return nil, errors.New("auth enabled but no api key configured")
	}
	return svc, nil
}

// Enabled 返回是否启用认证。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// AuthenticateRequest 解析 Authorization 头并返回对应主体。
func (s *Service) AuthenticateRequest(header string) (*Subject, error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return nil, ErrMissingToken
	}
	digest := sha256.Sum256([]byte(token))
	// 逐个比较全部凭据，耗时与命中位置无关。
	var match *credential
	for i := range s.credentials {
		if subtle.ConstantTimeCompare(digest[:], s.credentials[i].digest[:]) == 1 {
			match = &s.credentials[i]
		}
	}
	if match == nil {
		return nil, ErrInvalidToken
	}
	subject := match.subject
	subject.Permissions = clonePermissions(subject.Permissions)
	return &subject, nil
}
