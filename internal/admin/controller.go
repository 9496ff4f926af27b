package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storegate/pkg/httputil"
)

// entityController is the generic CRUD controller behind the sample resource
// registrations. Entities are opaque jsonb payloads keyed by (type, id); the
// console cares only that they sit behind the gate, not what they contain.
// It serves paths relative to its own root: "/" for the collection, "/{id}"
// for one entity.
type entityController struct {
	pool       *pgxpool.Pool
	entityType string
	log        *zap.SugaredLogger
}

// NewEntityController builds a controller for one entity type. With no pool
// configured it answers 503 rather than pretending to persist.
func NewEntityController(pool *pgxpool.Pool, entityType string, log *zap.SugaredLogger) http.Handler {
	return &entityController{pool: pool, entityType: entityType, log: log}
}

func (c *entityController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.pool == nil {
		httputil.Fail(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	id := strings.Trim(r.URL.Path, "/")
	if strings.Contains(id, "/") {
		httputil.Fail(w, "not found", http.StatusNotFound)
		return
	}
	switch {
	case id == "" && r.Method == http.MethodGet:
		c.list(w, r)
	case id == "" && r.Method == http.MethodPost:
		c.create(w, r)
	case id != "" && r.Method == http.MethodGet:
		c.get(w, r, id)
	case id != "" && r.Method == http.MethodPut:
		c.update(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		c.delete(w, r, id)
	default:
		httputil.Fail(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (c *entityController) list(w http.ResponseWriter, r *http.Request) {
	rows, err := c.pool.Query(r.Context(), `
		SELECT id, payload FROM admin_entities WHERE entity_type=$1 ORDER BY created_at
	`, c.entityType)
	if err != nil {
		c.log.Errorw("entity list", "type", c.entityType, "err", err)
		httputil.Fail(w, "db error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			httputil.Fail(w, "db error", http.StatusInternalServerError)
			return
		}
		var doc map[string]any
		_ = json.Unmarshal(payload, &doc)
		out = append(out, map[string]any{"id": id, "payload": doc})
	}
	httputil.Success(w, map[string]any{"items": out}, http.StatusOK)
}

func (c *entityController) get(w http.ResponseWriter, r *http.Request, id string) {
	var payload []byte
	err := c.pool.QueryRow(r.Context(), `
		SELECT payload FROM admin_entities WHERE entity_type=$1 AND id=$2
	`, c.entityType, id).Scan(&payload)
	if err == pgx.ErrNoRows {
		httputil.Fail(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		httputil.Fail(w, "db error", http.StatusInternalServerError)
		return
	}
	var doc map[string]any
	_ = json.Unmarshal(payload, &doc)
	httputil.Success(w, map[string]any{"id": id, "payload": doc}, http.StatusOK)
}

func (c *entityController) create(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		httputil.Fail(w, "bad json", http.StatusBadRequest)
		return
	}
	id := uuid.NewString()
	payload, _ := json.Marshal(doc)
	if _, err := c.pool.Exec(r.Context(), `
		INSERT INTO admin_entities (entity_type, id, payload) VALUES ($1,$2,$3)
	`, c.entityType, id, payload); err != nil {
		httputil.Fail(w, "db error", http.StatusInternalServerError)
		return
	}
	httputil.Success(w, map[string]any{"id": id}, http.StatusCreated)
}

func (c *entityController) update(w http.ResponseWriter, r *http.Request, id string) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		httputil.Fail(w, "bad json", http.StatusBadRequest)
		return
	}
	payload, _ := json.Marshal(doc)
	tag, err := c.pool.Exec(r.Context(), `
		UPDATE admin_entities SET payload=$3, updated_at=NOW() WHERE entity_type=$1 AND id=$2
	`, c.entityType, id, payload)
	if err != nil {
		httputil.Fail(w, "db error", http.StatusInternalServerError)
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.Fail(w, "not found", http.StatusNotFound)
		return
	}
	httputil.Success(w, map[string]any{"id": id}, http.StatusOK)
}

func (c *entityController) delete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := c.pool.Exec(r.Context(), `
		DELETE FROM admin_entities WHERE entity_type=$1 AND id=$2
	`, c.entityType, id); err != nil {
		httputil.Fail(w, "db error", http.StatusInternalServerError)
		return
	}
	httputil.Success(w, map[string]any{"id": id}, http.StatusOK)
}
