package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const userIDContextKey = "user_id"

// userAuth извлекает идентификатор аутентифицированного пользователя.
// Проверка JWT выполняется вышестоящим шлюзом, сюда доезжает только
// заголовок X-User-Id.
func userAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get("X-User-Id")
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing X-User-Id header")
			}
			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}
