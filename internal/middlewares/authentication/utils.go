package authentication

import (
	"fmt"
	"strings"
)

func extractBearerToken(authorizationHeader string) (string, error) {
	if authorizationHeader == "" || !strings.HasPrefix(authorizationHeader, "Bearer ") {
		return "", fmt.Errorf("authorization header is missing or invalid")
	}

	tokenStr := strings.TrimPrefix(authorizationHeader, "Bearer ")
	return tokenStr, nil
}
