package redis

import (
	"github.com/gomodule/redigo/redis"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/base/metrics"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

// each key is a hash of {value, version}; the script bumps the version
// only when the caller saw the current one, conflict returns -1
const casScript = `
local cur = redis.call('HGET', KEYS[1], 'version')
if cur == false then cur = '0' end
if cur ~= ARGV[1] then
	return -1
end
local next = tonumber(ARGV[1]) + 1
redis.call('HSET', KEYS[1], 'version', next, 'value', ARGV[2])
return next
`

type impl struct {
	name string
	met  metrics.Service
	pool *redis.Pool
	cas  *redis.Script
}

// New wraps a redigo pool as a versioned key-value store
func New(name string, met metrics.Service, pool *redis.Pool) keyvalue.Store {
	return &impl{
		name: name,
		met:  met,
		pool: pool,
		cas:  redis.NewScript(1, casScript),
	}
}

func (im *impl) getConn() (redis.Conn, error) {
	defer im.met.BumpTime("getconn.time", "cluster", im.name).End()
	conn := im.pool.Get()
	if err := conn.Err(); err != nil {
		im.met.BumpSum("getconn.err", 1, "cluster", im.name, "reason", err.Error())
		return nil, err
	}
	return conn, nil
}

func (im *impl) Get(c ctx.Ctx, key string) (*keyvalue.Entry, error) {
	defer im.met.BumpTime("time", "func", "get", "cluster", im.name).End()

	conn, err := im.getConn()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	reply, err := redis.Values(conn.Do("HMGET", key, "value", "version"))
	if err != nil {
		c.WithFields(log.Fields{"err": err, "key": key}).Error("redis HMGET failed")
		return nil, err
	}

	var value []byte
	var version int64
	if _, err := redis.Scan(reply, &value, &version); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, keyvalue.ErrNotFound
	}
	im.met.BumpHistogram("bytes", float64(len(value)), "func", "get", "cluster", im.name)
	return &keyvalue.Entry{Value: value, Version: version}, nil
}

func (im *impl) Put(c ctx.Ctx, key string, value []byte, prev int64) (int64, error) {
	defer im.met.BumpTime("time", "func", "put", "cluster", im.name).End()

	conn, err := im.getConn()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	next, err := redis.Int64(im.cas.Do(conn, key, prev, value))
	if err != nil {
		c.WithFields(log.Fields{"err": err, "key": key}).Error("redis cas failed")
		return 0, err
	}
	if next < 0 {
		im.met.BumpSum("conflict", 1, "cluster", im.name)
		return 0, domain.ErrConflict
	}
	return next, nil
}

func (im *impl) Del(c ctx.Ctx, key string) error {
	defer im.met.BumpTime("time", "func", "del", "cluster", im.name).End()

	conn, err := im.getConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		c.WithFields(log.Fields{"err": err, "key": key}).Error("redis DEL failed")
		return err
	}
	return nil
}
