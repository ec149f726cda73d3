package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")
	ErrTokenNotYetValid     = fmt.Errorf("токен ещё не активен")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")
	ErrInvalidCronSecret = fmt.Errorf("неверный или отсутствующий секрет планировщика")
	ErrUnauthorized      = fmt.Errorf("неавторизован")
	ErrForbidden         = fmt.Errorf("доступ запрещён")

	// Контекст
	ErrUserIDNotFoundInContext = fmt.Errorf("UserID не найден в контексте запроса")
	ErrInvalidUserID           = fmt.Errorf("недопустимый UserID")

	// Общие
	ErrNotFound       = fmt.Errorf("запись не найдена")
	ErrBadRequest     = fmt.Errorf("неверный запрос")
	ErrConflict       = fmt.Errorf("конфликт данных")
	ErrInternalServer = fmt.Errorf("внутренняя ошибка сервера")
)

// HttpError - ошибка с готовым HTTP-кодом и сообщением для клиента.
type HttpError struct {
	Code    int                    `json:"-"`
	Message string                 `json:"message"`
	Err     error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, details map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Details: details}
}

// InvalidInputError - ошибка входных данных (400).
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// GuardError - нарушение бизнес-правила перехода состояния.
// Это не дефект системы: операция отклонена без каких-либо изменений.
type GuardError struct {
	Rule    string
	Message string
	Details map[string]interface{}
}

func (e *GuardError) Error() string { return e.Message }

func NewGuardError(rule, format string, args ...interface{}) *GuardError {
	return &GuardError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// WithDetails добавляет детали (например, список незаполненных пунктов чек-листа).
func (e *GuardError) WithDetails(key string, value interface{}) *GuardError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ConcurrencyError - конфликт блокировок или сериализации на одной и той же записи.
// Клиент может повторить запрос.
type ConcurrencyError struct {
	Err error
}

func (e *ConcurrencyError) Error() string {
	return "запись изменяется другим запросом, повторите попытку: " + e.Err.Error()
}

func (e *ConcurrencyError) Unwrap() error { return e.Err }

// IsGuard сообщает, является ли ошибка нарушением бизнес-правила.
func IsGuard(err error) bool {
	var g *GuardError
	return errors.As(err, &g)
}

// StatusCode определяет HTTP-код для произвольной ошибки приложения.
func StatusCode(err error) int {
	var (
		httpErr  *HttpError
		guardErr *GuardError
		inputErr *InvalidInputError
		concErr  *ConcurrencyError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.As(err, &guardErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &concErr):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case isAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func isAuthError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrInvalidToken, ErrTokenExpired, ErrTokenNotYetValid,
		ErrEmptyAuthHeader, ErrInvalidAuthHeader, ErrInvalidCronSecret, ErrInvalidSigningMethod,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// JoinMissing формирует читаемый перечень для сообщений об ошибках.
func JoinMissing(items []string) string {
	return strings.Join(items, ", ")
}
