package builder

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/go-sql-driver/mysql"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

const (
	// MySQLConnectorClass is the Debezium MySQL source connector plugin
	MySQLConnectorClass = "io.debezium.connector.mysql.MySqlConnector"

	// DefaultMySQLPort is used when the source connection omits a port
	DefaultMySQLPort = 3306

	// DefaultProbeTimeout bounds the reachability probe
	DefaultProbeTimeout = 5 * time.Second

	// DefaultKafkaBootstrapServers is used for schema history when no override is given
	DefaultKafkaBootstrapServers = "localhost:9092"

	// BootstrapServersOverride is the connector override key that sets the schema history bootstrap servers
	BootstrapServersOverride = "kafka.bootstrap.servers"

	serverIDBase  = 5400
	serverIDRange = 4_000_000_000

	jsonConverter = "org.apache.kafka.connect.json.JsonConverter"
)

// reservedKeys are derived from the task identity and cannot be overridden
var reservedKeys = map[string]struct{}{
	"connector.class":                     {},
	"database.hostname":                   {},
	"database.port":                       {},
	"database.user":                       {},
	"database.password":                   {},
	"database.server.id":                  {},
	"database.server.name":                {},
	"topic.prefix":                        {},
	"schema.history.internal.kafka.topic": {},
}

//go:embed mysql_source.schema.json
var mysqlSourceSchema []byte

const mysqlSourceSchemaURL = "https://schemas.dbsync.local/mysql_source.schema.json"

// Opener opens a database handle; it matches sql.Open.
type Opener func(driverName, dataSourceName string) (*sql.DB, error)

// MySQLOption configures the MySQL builder
type MySQLOption func(*MySQL)

// WithProbeTimeout sets the reachability probe timeout
func WithProbeTimeout(d time.Duration) MySQLOption {
	return func(b *MySQL) {
		if d > 0 {
			b.probeTimeout = d
		}
	}
}

// WithKafkaBootstrapServers sets the default schema history bootstrap servers
func WithKafkaBootstrapServers(servers string) MySQLOption {
	return func(b *MySQL) {
		if servers != "" {
			b.bootstrapServers = servers
		}
	}
}

// WithOpener replaces sql.Open for the reachability probe
func WithOpener(open Opener) MySQLOption {
	return func(b *MySQL) {
		b.open = open
	}
}

// MySQL builds Debezium MySQL connector configurations
type MySQL struct {
	probeTimeout     time.Duration
	bootstrapServers string
	open             Opener
	schema           *jsonschema.Schema
}

var _ Builder = (*MySQL)(nil)

// NewMySQL creates the MySQL builder
func NewMySQL(opts ...MySQLOption) (*MySQL, error) {
	schema, err := compileSchema(mysqlSourceSchemaURL, mysqlSourceSchema)
	if err != nil {
		return nil, err
	}
	b := &MySQL{
		probeTimeout:     DefaultProbeTimeout,
		bootstrapServers: DefaultKafkaBootstrapServers,
		open:             sql.Open,
		schema:           schema,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func compileSchema(url string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", url, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", url, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", url, err)
	}
	return schema, nil
}

// Kind implements Builder
func (*MySQL) Kind() task.DatabaseKind {
	return task.DatabaseMySQL
}

// ConnectorClass implements Builder
func (*MySQL) ConnectorClass() string {
	return MySQLConnectorClass
}

// mysqlSource is the source connection document of a MySQL task
type mysqlSource struct {
	Host           string `json:"host"`
	Port           any    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Database       string `json:"database"`
	ServerTimezone string `json:"serverTimezone"`
	SSL            bool   `json:"ssl"`
}

// port accepts the port as a JSON number or a numeric string
func (s *mysqlSource) port() int {
	switch p := s.Port.(type) {
	case float64:
		if p > 0 {
			return int(p)
		}
	case string:
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMySQLPort
}

// dsn formats the go-sql-driver DSN for the probe
func (s *mysqlSource) dsn(timeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.port()))
	cfg.DBName = s.Database
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout
	if s.SSL {
		cfg.TLSConfig = "preferred"
	}
	return cfg.FormatDSN()
}

// parseSource validates raw against the source schema and decodes it
func (b *MySQL) parseSource(raw json.RawMessage) (*mysqlSource, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("source connection config is empty")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("source connection config is not valid JSON: %w", err)
	}
	if err := b.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid source connection config: %w", err)
	}
	var src mysqlSource
	if err := gojson.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("failed to decode source connection config: %w", err)
	}
	return &src, nil
}

// BuildConfig implements Builder
func (b *MySQL) BuildConfig(t *task.SyncTask) (map[string]string, error) {
	src, err := b.parseSource(t.SourceConnectionConfig)
	if err != nil {
		return nil, err
	}
	overrides, err := parseOverrides(t.ConnectorConfig)
	if err != nil {
		return nil, err
	}

	cfg := map[string]string{
		"connector.class":   MySQLConnectorClass,
		"tasks.max":         "1",
		"database.hostname": src.Host,
		"database.port":     strconv.Itoa(src.port()),
		"database.user":     src.Username,
		"database.password": src.Password,

		"database.server.id":   ServerID(t.TenantID.String()),
		"database.server.name": strings.ReplaceAll(t.TaskCode, "-", "_"),
		"topic.prefix":         t.TenantID.String(),

		"snapshot.mode":        "initial",
		"snapshot.max.threads": "1",
		"max.batch.size":       "2048",
		"max.queue.size":       "8192",

		"offset.storage":           "org.apache.kafka.connect.storage.KafkaOffsetBackingStore",
		"offset.flush.interval.ms": "10000",

		"schema.history.internal.kafka.bootstrap.servers": b.bootstrapServers,
		"schema.history.internal.kafka.topic":             t.TaskCode + "-schema-history",

		"include.schema.changes":        "true",
		"decimal.handling.mode":         "precise",
		"bigint.unsigned.handling.mode": "long",
		"time.precision.mode":           "adaptive",
		"binary.handling.mode":          "bytes",
		"tombstones.on.delete":          "false",
		"heartbeat.interval.ms":         "30000",
		"heartbeat.topics.prefix":       "__debezium-heartbeat",

		"key.converter":                  jsonConverter,
		"value.converter":                jsonConverter,
		"key.converter.schemas.enable":   "false",
		"value.converter.schemas.enable": "false",
	}
	if src.Database != "" {
		cfg["database.include.list"] = src.Database
	}
	if src.ServerTimezone != "" {
		cfg["database.serverTimezone"] = src.ServerTimezone
	}
	if src.SSL {
		cfg["database.ssl.mode"] = "required"
	}

	// Overrides win over defaults, including table and column include/exclude lists.
	for k, v := range overrides {
		if _, reserved := reservedKeys[k]; reserved {
			logger.Warnw("ignoring connector override of a derived key", "task_code", t.TaskCode, "key", k)
			continue
		}
		if k == BootstrapServersOverride {
			cfg["schema.history.internal.kafka.bootstrap.servers"] = v
			continue
		}
		cfg[k] = v
	}
	return cfg, nil
}

// ValidateConnection implements Builder
func (b *MySQL) ValidateConnection(ctx context.Context, raw json.RawMessage) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("mysql connection probe panicked", "panic", r)
			ok = false
		}
	}()

	src, err := b.parseSource(raw)
	if err != nil {
		logger.FromContext(ctx).Warnw("mysql connection probe rejected config", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()

	db, err := b.open("mysql", src.dsn(b.probeTimeout))
	if err != nil {
		logger.FromContext(ctx).Warnw("mysql connection probe failed to open", "host", src.Host, "error", err)
		return false
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.PingContext(ctx); err != nil {
		logger.FromContext(ctx).Warnw("mysql connection probe failed",
			"host", src.Host, "port", src.port(), "database", src.Database, "error", err)
		return false
	}
	logger.FromContext(ctx).Debugw("mysql connection probe succeeded", "host", src.Host, "port", src.port())
	return true
}

// ServerID derives a stable, non-zero MySQL replication server id from a tenant id
func ServerID(tenantID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID))
	return strconv.FormatUint(serverIDBase+uint64(h.Sum32())%serverIDRange, 10)
}

// parseOverrides flattens the connector override document into string values
func parseOverrides(raw json.RawMessage) (map[string]string, error) {
	out := map[string]string{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	var doc map[string]any
	dec := gojson.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("connector config must be a JSON object: %w", err)
	}
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case gojson.Number:
			out[k] = val.String()
		default:
			encoded, err := gojson.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("connector config key %s: %w", k, err)
			}
			out[k] = string(encoded)
		}
	}
	return out, nil
}
