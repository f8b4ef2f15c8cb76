package handler

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/calendarimport"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/config"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/feed"
	"golang.org/x/oauth2"
)

// Store 由 repository.Repository 实现
type Store interface {
	calendarimport.ScheduleStore
	GetUserByID(id int64) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	GetUserSchedule(userID int64) (*domain.UserSchedule, error)
	UpdateUserSchedule(us *domain.UserSchedule) error
}

// SessionCache 由 cache.Cache 实现
type SessionCache interface {
	SaveSession(ctx context.Context, s *calendarimport.Session) error
	GetSession(ctx context.Context, id string) (*calendarimport.Session, error)
	UpdateSession(ctx context.Context, id string, fn func(s *calendarimport.Session) error) (*calendarimport.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SaveOAuthState(ctx context.Context, userID int64, state string) error
	ConsumeOAuthState(ctx context.Context, userID int64, state string) error
	SaveGoogleToken(ctx context.Context, userID int64, token *oauth2.Token) error
	GetGoogleToken(ctx context.Context, userID int64) (*oauth2.Token, error)
}

// MailPublisher 由 *amqp.Channel 实现
type MailPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  Store
	translator  ut.Translator
	mailChannel MailPublisher
	cache       SessionCache
	google      *feed.GoogleClient
	ics         *feed.ICSClient
	location    *time.Location

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Store, mailCh MailPublisher, c SessionCache, google *feed.GoogleClient, ics *feed.ICSClient) (*Handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里使用 json 字段名，和前端看到的保持一致
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		cache:       c,
		google:      google,
		ics:         ics,
		location:    loc,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Handle("/metrics", promhttp.Handler())

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)
		r.Use(h.preventInactiveUser)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Post("/entries", h.CreateScheduleEntry)
			r.Route("/entries/{day}/{index}", func(r chi.Router) {
				r.Patch("/", h.UpdateScheduleEntry)
				r.Delete("/", h.DeleteScheduleEntry)
			})
		})

		r.Route("/calendar-import", func(r chi.Router) {
			r.Route("/google", func(r chi.Router) {
				r.Get("/auth-url", h.GetGoogleAuthURL)
				r.Post("/token", h.ExchangeGoogleToken)
			})
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.CreateImportSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(h.importSession)
					r.Get("/", h.GetImportSession)
					r.Delete("/", h.CancelImportSession)
					r.Patch("/selection", h.UpdateImportSelection)
					r.Post("/commit", h.CommitImportSession)
				})
			})
		})
	})
}
