// Package register реализует HTTP-обработчик регистрации пользователя
// POST /api/auth/register.
//
// Тело запроса проверяется в фиксированном порядке: наличие email и пароля,
// длина пароля, формат email. Первое нарушение сразу возвращается клиенту
// с кодом 400, сервис при этом не вызывается.
package register

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/apperror"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
)

// Сообщения об ошибках валидации.
const (
	MsgInvalidBody    = "Invalid request body"
	MsgRequired       = "Email and password are required"
	MsgPasswordLength = "Password must be at least 6 characters"
	MsgEmailFormat    = "Please enter a valid email address"
	MsgCreated        = "User created successfully"
)

// emailPart — символы без пробелов и @. Пробелом считаются и юникодные
// разделители (NBSP, U+2028 и т.п.), а не только ASCII.
const emailPart = `[^\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}@]+`

var simpleEmail = regexp.MustCompile(`^` + emailPart + `@` + emailPart + `\.` + emailPart + `$`)

// utf16Len считает длину строки в кодовых единицах UTF-16: символ вне BMP
// занимает две единицы.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Request — входные данные для регистрации.
type Request struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,simpleemail"`
	Password string `json:"password" validate:"required,utf16min=6"`
}

// Response — тело успешного ответа.
type Response struct {
	Message string        `json:"message" example:"User created successfully"`
	User    response.User `json:"user"`
}

// Handler обрабатывает запросы на регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler и регистрирует правила simpleemail и utf16min в валидаторе.
func New(log *slog.Logger, service Service) *Handler {
	v := validator.New()
	if err := v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return simpleEmail.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("utf16min", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			panic(err)
		}
		return utf16Len(fl.Field().String()) >= limit
	}); err != nil {
		panic(err)
	}
	return &Handler{
		log:      log,
		service:  service,
		validate: v,
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создает пользователя по email и паролю. Email приводится к нижнему регистру.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные нового пользователя"
// @Success 201 {object} Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации или email уже занят"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("registration panicked", sl.Err(fmt.Errorf("%v", rec)))
			response.WriteError(w, r, http.StatusInternalServerError, response.MsgInternal)
		}
	}()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, response.MsgInternal)
		return
	}

	if msg := h.validationMessage(req); msg != "" {
		log.Info("validation failed", slog.String("reason", msg))
		response.WriteError(w, r, http.StatusBadRequest, msg)
		return
	}

	email := strings.ToLower(req.Email)
	user, err := h.service.CreateUser(r.Context(), email, req.Password, req.Name)
	if err != nil {
		log.Info("registration rejected", sl.Err(err))
		msg := "Failed to create user"
		if appErr, ok := apperror.As(err); ok {
			msg = appErr.Message
		}
		response.WriteError(w, r, http.StatusBadRequest, msg)
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{
		Message: MsgCreated,
		User:    response.NewUser(user),
	})
}

// validationMessage возвращает сообщение о первом нарушении в порядке:
// обязательные поля, длина пароля, формат email.
func (h *Handler) validationMessage(req Request) string {
	err := h.validate.Struct(req)
	if err == nil {
		return ""
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return MsgInvalidBody
	}

	failed := make(map[string]bool, len(errs))
	for _, e := range errs {
		failed[e.ActualTag()] = true
	}
	switch {
	case failed["required"]:
		return MsgRequired
	case failed["utf16min"]:
		return MsgPasswordLength
	default:
		return MsgEmailFormat
	}
}
