package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newJWTApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		role, _ := c.Locals("user_role").(string)
		return c.JSON(fiber.Map{"user_id": userID, "role": role})
	})
	return app
}

func TestJWTProtectedStoresStringSubject(t *testing.T) {
	app := newJWTApp()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "climber-42",
		"role": "System",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	require.Equal(t, "climber-42", body["user_id"])
	require.Equal(t, "system", body["role"])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := newJWTApp()

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"wrong secret":   "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "u1"}),
		"no subject":     "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": "admin"}),
		"expired":        "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}),
	}

	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err, name)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestNormalizeUserIDAcceptsNumericSubjects(t *testing.T) {
	require.Equal(t, "7", normalizeUserID(float64(7)))
	require.Equal(t, "7", normalizeUserID(7))
	require.Empty(t, normalizeUserID(float64(-1)))
	require.Empty(t, normalizeUserID(1.5))
	require.Empty(t, normalizeUserID(true))
}
