package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/models"
	"github.com/studysphere/studysphere/store"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// Provider-specific structs
type gitHubUser struct {
	Email string `json:"email"`
	Login string `json:"login"`
}

type googleUser struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

var oauthAPIs = map[string]struct {
	URL     string
	Headers map[string]string
}{
	"github": {
		URL: "https://api.github.com/user",
		Headers: map[string]string{
			"X-GitHub-Api-Version": "2022-11-28",
		},
	},
	"google": {
		URL:     "https://openidconnect.googleapis.com/v1/userinfo",
		Headers: map[string]string{},
	},
}

var oauthConfigsTemplate = map[string]*oauth2.Config{
	"github": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes: []string{"user:email"},
	},
	"google": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	},
}

func addOauthEndpointsAndScopes(oauthConfigs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	for provider := range oauthConfigs {
		template, ok := oauthConfigsTemplate[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
		oauthConfigs[provider].Endpoint = template.Endpoint
		oauthConfigs[provider].Scopes = template.Scopes
	}

	return oauthConfigs, nil
}

// Signup registers a local-credential account. Uniqueness of the username
// is enforced by the store's conditional put; the email pre-check happens
// there too.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*Session, string, error) {
	if err := ValidateSignup(username, email, password); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("password hashing failed: %w", err)
	}

	user, err := s.Store.CreateUser(ctx, models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, "", &ValidationError{Msg: "username or email already taken"}
		}
		return nil, "", fmt.Errorf("create user failed: %w", err)
	}

	return s.openSession(ctx, user)
}

// Login authenticates a local-credential account by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, string, error) {
	user, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, "", &ValidationError{Msg: "invalid email or password"}
		}
		return nil, "", fmt.Errorf("user lookup failed: %w", err)
	}

	if user.PasswordHash == "" {
		// External-provider account; there is no local credential to check
		return nil, "", &ValidationError{Msg: "invalid email or password"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", &ValidationError{Msg: "invalid email or password"}
	}

	return s.openSession(ctx, user)
}

// StartOAuth begins an authorization attempt: a fresh PKCE verifier is
// parked in its named slot under the state nonce and the provider auth URL
// is returned. redirectURL is derived by the caller from the inbound
// request.
func (s *Service) StartOAuth(ctx context.Context, provider string, redirectURL string) (string, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	state, err := randomState()
	if err != nil {
		return "", err
	}

	verifier := oauth2.GenerateVerifier()
	if err := s.Cache.SetPendingVerifier(ctx, state, verifier); err != nil {
		return "", fmt.Errorf("failed to store verifier: %w", err)
	}

	c := *conf
	c.RedirectURL = redirectURL
	return c.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// CompleteOAuth consumes the pending verifier exactly once, exchanges
// code+verifier for a provider session, and logs in (creating the account
// on first sight of the email).
func (s *Service) CompleteOAuth(ctx context.Context, provider, state, code, redirectURL string) (*Session, string, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return nil, "", fmt.Errorf("unsupported provider: %s", provider)
	}

	verifier, err := s.Cache.TakePendingVerifier(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, "", errors.New("missing or expired authorization verifier; restart the sign-in")
		}
		return nil, "", fmt.Errorf("verifier lookup failed: %w", err)
	}

	c := *conf
	c.RedirectURL = redirectURL
	tok, err := c.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, "", fmt.Errorf("oauth exchange failed: %w", err)
	}

	email, err := fetchProviderEmail(ctx, &c, tok, provider)
	if err != nil {
		return nil, "", fmt.Errorf("oauth userinfo failed: %w", err)
	}

	user, err := s.lookupOrCreateOAuthUser(ctx, email, provider)
	if err != nil {
		return nil, "", err
	}

	return s.openSession(ctx, user)
}

func fetchProviderEmail(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, provider string) (string, error) {
	api, ok := oauthAPIs[provider]
	if !ok {
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", api.URL, nil)
	if err != nil {
		return "", err
	}
	for k, v := range api.Headers {
		req.Header.Set(k, v)
	}

	client := conf.Client(ctx, tok)
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var email string
	switch provider {
	case "github":
		var gh gitHubUser
		if err := json.Unmarshal(body, &gh); err != nil {
			return "", err
		}
		email = gh.Email
	case "google":
		var g googleUser
		if err := json.Unmarshal(body, &g); err != nil {
			return "", err
		}
		email = g.Email
	}

	if email == "" {
		return "", fmt.Errorf("provider %s did not supply a verified email", provider)
	}
	return email, nil
}

// lookupOrCreateOAuthUser syncs the local account lazily: first sight of an
// email creates an account named after its local part, with a random
// numeric suffix on collision.
func (s *Service) lookupOrCreateOAuthUser(ctx context.Context, email, provider string) (models.User, error) {
	user, err := s.Store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrItemNotFound) {
		return models.User{}, fmt.Errorf("user lookup failed: %w", err)
	}

	username := deriveUsername(email)
	for attempt := 0; attempt < 5; attempt++ {
		user, err = s.Store.CreateUser(ctx, models.User{
			Username: username,
			Email:    email,
			Provider: provider,
		})
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return models.User{}, fmt.Errorf("create user failed: %w", err)
		}
		username = fmt.Sprintf("%s%04d", deriveUsername(email), rand.IntN(10000))
	}

	return models.User{}, errors.New("could not allocate a unique username")
}

func deriveUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	for len(local) < minUsernameLen {
		local += fmt.Sprintf("%d", rand.IntN(10))
	}
	if len(local) > maxUsernameLen-4 {
		local = local[:maxUsernameLen-4]
	}
	return local
}

func randomState() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// openSession mints the JWT and seeds the like-set; both auth paths end
// here.
func (s *Service) openSession(ctx context.Context, user models.User) (*Session, string, error) {
	token, err := s.CreateJWT(user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("token generation failed: %w", err)
	}

	liked, err := s.loadLikeSet(ctx, user.Username)
	if err != nil {
		log.Printf("Like-set load failed for %s at login: %v", user.Username, err)
		liked = make(map[string]struct{})
	}

	return &Session{User: user, Liked: liked}, token, nil
}

func (s *Service) CreateJWT(username string) (string, error) {
	claims := jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func (s *Service) VerifyJWT(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", time.Time{}, err
	}

	if !token.Valid {
		return "", time.Time{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, errors.New("invalid token claims")
	}

	username, ok := claims["username"].(string)
	if !ok {
		return "", time.Time{}, errors.New("missing username claim")
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return "", time.Time{}, errors.New("missing exp claim")
	}
	expiry := time.Unix(int64(expFloat), 0)

	return username, expiry, nil
}

func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.User, error) {
	if len(token) == 0 {
		return models.User{}, ErrUnauthenticated
	}

	username, _, err := s.VerifyJWT(token)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}

	user, err := s.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}
