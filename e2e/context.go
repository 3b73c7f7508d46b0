package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const devSigningKey = "dev-secret-key-change-in-production"

// TestContext carries one scenario's state: the signed-in caller, seeded
// employees and the last HTTP exchange.
type TestContext struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	HTTP       *http.Client
	DB         *sql.DB

	orgID      string
	token      string
	employees  map[string]string
	remembered map[string]string

	lastStatus int
	lastHeader http.Header
	lastBody   []byte
}

// NewTestContext reads CLEARANCE_E2E_URL, DATABASE_URL and JWT_SIGNING_KEY.
func NewTestContext() (*TestContext, error) {
	key := os.Getenv("JWT_SIGNING_KEY")
	if key == "" {
		key = devSigningKey
	}
	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &TestContext{
		BaseURL:    strings.TrimRight(os.Getenv("CLEARANCE_E2E_URL"), "/"),
		SigningKey: key,
		Issuer:     os.Getenv("JWT_ISSUER"),
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		DB:         db,
	}, nil
}

// Reset starts a fresh organisation so scenarios never see each other's rows.
func (tc *TestContext) Reset() {
	tc.orgID = uuid.NewString()
	tc.token = ""
	tc.employees = map[string]string{}
	tc.remembered = map[string]string{}
	tc.lastStatus = 0
	tc.lastHeader = nil
	tc.lastBody = nil
}

func (tc *TestContext) OrganisationID() string { return tc.orgID }

// SignIn mints a token for a new user with role and name, and registers the
// user so audit entries resolve the display name.
func (tc *TestContext) SignIn(ctx context.Context, role, name string) error {
	userID := uuid.NewString()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	if _, err := tc.DB.ExecContext(ctx,
		`INSERT INTO users (id, organisation_id, full_name, email, role) VALUES ($1, $2, $3, $4, $5)`,
		userID, tc.orgID, name, email, role); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    userID,
		"org_id": tc.orgID,
		"role":   role,
		"name":   name,
		"email":  email,
		"iat":    now.Unix(),
		"exp":    now.Add(15 * time.Minute).Unix(),
		"jti":    uuid.NewString(),
	}
	if tc.Issuer != "" {
		claims["iss"] = tc.Issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tc.SigningKey))
	if err != nil {
		return err
	}
	tc.token = signed
	return nil
}

// SeedEmployee inserts an employee of the current organisation holding the
// given certification types, all valid for a year.
func (tc *TestContext) SeedEmployee(ctx context.Context, name string, valid []string) error {
	employeeID := uuid.NewString()
	if _, err := tc.DB.ExecContext(ctx,
		`INSERT INTO employees (id, organisation_id, full_name) VALUES ($1, $2, $3)`,
		employeeID, tc.orgID, name); err != nil {
		return fmt.Errorf("seed employee: %w", err)
	}
	expiry := time.Now().AddDate(1, 0, 0)
	for _, certType := range valid {
		if _, err := tc.DB.ExecContext(ctx,
			`INSERT INTO certifications (id, employee_id, certification_type, status, expiry_date) VALUES ($1, $2, $3, 'valid', $4)`,
			uuid.NewString(), employeeID, certType, expiry); err != nil {
			return fmt.Errorf("seed certification %s: %w", certType, err)
		}
	}
	tc.employees[name] = employeeID
	return nil
}

// EmployeeID returns the id of a seeded employee.
func (tc *TestContext) EmployeeID(name string) (string, error) {
	employeeID, ok := tc.employees[name]
	if !ok {
		return "", fmt.Errorf("employee %q was not seeded", name)
	}
	return employeeID, nil
}

func (tc *TestContext) Remember(alias, value string) { tc.remembered[alias] = value }

func (tc *TestContext) Recall(alias string) (string, error) {
	value, ok := tc.remembered[alias]
	if !ok {
		return "", fmt.Errorf("nothing remembered as %q", alias)
	}
	return value, nil
}

func (tc *TestContext) POST(path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(raw))
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

func (tc *TestContext) LastBody() []byte { return tc.lastBody }

func (tc *TestContext) LastHeader(name string) string { return tc.lastHeader.Get(name) }

// ResponseField walks a dotted path ("override.id", "result.compliant",
// "entries.0.action") through the last JSON body.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var node any
	if err := json.Unmarshal(tc.lastBody, &node); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, tc.lastBody)
			}
			node = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			node = v[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %q", part, path)
		}
	}
	return node, nil
}
