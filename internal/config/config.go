package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs only for now
	BlobBasePath string

	// CoursesDir is the root of per-course rubric directories.
	CoursesDir string

	AuthSecret    string
	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Completion backend.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Evaluation policy.
	HintOverridesModel bool
	AlwaysEvaluate     []int
	PromptBudget       int

	// Semantic search over rubric criteria.
	EnableSearch   bool
	EmbeddingModel string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:         mode,
		HTTPAddr:     addr,
		PublicURL:    os.Getenv("PUBLIC_URL"),
		DBDriver:     envOr("DB_DRIVER", "sqlite"),
		DBDSN:        envOr("DB_DSN", ""),
		BlobDriver:   envOr("BLOB_DRIVER", "fs"),
		BlobBasePath: envOr("BLOB_BASE_PATH", "./submissions"),
		CoursesDir:   envOr("COURSES_DIR", "./courses"),

		AuthSecret:    envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://rubriq.app"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout: envDuration("OPENAI_TIMEOUT", 60*time.Second),

		HintOverridesModel: envBool("HINT_OVERRIDES_MODEL", true),
		AlwaysEvaluate:     intCSVOr("ALWAYS_EVALUATE", "4,5"),
		PromptBudget:       envInt("PROMPT_BUDGET", 4000),

		EnableSearch:   envBool("ENABLE_SEARCH", false),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
	}
}

// AlwaysEvaluateSet returns the always-evaluated criterion numbers as a set.
func (c Config) AlwaysEvaluateSet() map[int]bool {
	out := make(map[int]bool, len(c.AlwaysEvaluate))
	for _, n := range c.AlwaysEvaluate {
		out[n] = true
	}
	return out
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intCSVOr(k, def string) []int {
	var out []int
	for _, s := range csvOr(k, def) {
		if n, err := strconv.Atoi(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}
