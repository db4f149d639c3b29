package middleware

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/mt2n/internal/queue"
)

type AppUser struct {
	Subject     string
	Role        string
	Permissions []string
}

// App holds the process wide dependencies handlers need.
// Keyfunc may be nil, in which case only the master API key is accepted.
type App struct {
	Queue        queue.Publisher
	Keyfunc      jwt.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
