package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lvillar/signdoc"
)

// Redis stores each record as a hash, keeps insertion order in a list of
// ids and indexes ids by email in one set per address.
//
//	<prefix>record:<id>    hash
//	<prefix>records        list of ids
//	<prefix>email:<email>  set of ids
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. prefix namespaces every key; the
// default is "signdoc:".
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "signdoc:"
	}
	return &Redis{client: client, prefix: prefix}
}

// OpenRedis connects to the server at url, e.g. "redis://localhost:6379/0".
func OpenRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, backendErr("redis", "parse url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, backendErr("redis", "ping", err)
	}
	return NewRedis(client, prefix), nil
}

func (s *Redis) recordKey(id string) string  { return s.prefix + "record:" + id }
func (s *Redis) listKey() string             { return s.prefix + "records" }
func (s *Redis) emailKey(email string) string { return s.prefix + "email:" + EmailKey(email) }

func (s *Redis) Append(ctx context.Context, r Record) (Record, error) {
	r = prepare(r)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.recordKey(r.ID), toFields(r))
		p.RPush(ctx, s.listKey(), r.ID)
		p.SAdd(ctx, s.emailKey(r.Email), r.ID)
		return nil
	})
	if err != nil {
		return Record{}, backendErr("redis", "append", err)
	}
	return r, nil
}

func (s *Redis) All(ctx context.Context) ([]Record, error) {
	ids, err := s.client.LRange(ctx, s.listKey(), 0, -1).Result()
	if err != nil {
		return nil, backendErr("redis", "list", err)
	}
	return s.load(ctx, ids)
}

func (s *Redis) Get(ctx context.Context, id string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return Record{}, backendErr("redis", "get", err)
	}
	if len(fields) == 0 {
		return Record{}, notFound(id)
	}
	return fromFields(fields)
}

func (s *Redis) ByEmail(ctx context.Context, email string) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, s.emailKey(email)).Result()
	if err != nil {
		return nil, backendErr("redis", "by email", err)
	}
	return s.load(ctx, ids)
}

// load fetches the hashes for ids in one round trip. Ids whose hash has
// gone missing are skipped.
func (s *Redis) load(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, backendErr("redis", "load", err)
	}

	out := make([]Record, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		r, err := fromFields(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	email, err := s.client.HGet(ctx, s.recordKey(id), "email").Result()
	if errors.Is(err, redis.Nil) {
		return notFound(id)
	}
	if err != nil {
		return backendErr("redis", "delete", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.recordKey(id))
		p.LRem(ctx, s.listKey(), 0, id)
		p.SRem(ctx, s.emailKey(email), id)
		return nil
	})
	if err != nil {
		return backendErr("redis", "delete", err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	records, err := s.All(ctx)
	if err != nil {
		return err
	}
	keys := []string{s.listKey()}
	for _, r := range records {
		keys = append(keys, s.recordKey(r.ID), s.emailKey(r.Email))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return backendErr("redis", "clear", err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func toFields(r Record) map[string]any {
	return map[string]any{
		"id":              r.ID,
		"fullName":        r.FullName,
		"email":           r.Email,
		"phone":           r.Phone,
		"role":            r.Role,
		"notes":           r.Notes,
		"signatureMethod": string(r.SignatureMethod),
		"signatureImage":  r.SignatureImage,
		"artifact":        r.Artifact,
		"timestamp":       r.Timestamp.Format(time.RFC3339Nano),
		"dateCreated":     r.DisplayDate,
		"status":          string(r.Status),
	}
}

func fromFields(f map[string]string) (Record, error) {
	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"])
	if err != nil {
		return Record{}, backendErr("redis", "decode "+f["id"], err)
	}
	r := Record{
		ID:              f["id"],
		FullName:        f["fullName"],
		Email:           f["email"],
		Phone:           f["phone"],
		Role:            f["role"],
		Notes:           f["notes"],
		SignatureMethod: signdoc.SignatureMethod(f["signatureMethod"]),
		Timestamp:       ts.UTC(),
		DisplayDate:     f["dateCreated"],
		Status:          Status(f["status"]),
	}
	if v := f["signatureImage"]; v != "" {
		r.SignatureImage = []byte(v)
	}
	if v := f["artifact"]; v != "" {
		r.Artifact = []byte(v)
	}
	return r, nil
}
