package repository

import (
	"encoding/json"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/domain/profile"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

const currentSchema = 1

type envelope struct {
	Schema   int                             `json:"schema"`
	Profiles map[string]*profile.UserProfile `json:"profiles"`
}

type profileImpl struct {
	kv keyvalue.Store
}

func NewProfile(kv keyvalue.Store) profile.Repo {
	return &profileImpl{kv}
}

func (im *profileImpl) LoadAll(c ctx.Ctx) (map[string]*profile.UserProfile, int64, error) {
	entry, err := im.kv.Get(c, profile.StorageKey)
	if err == keyvalue.ErrNotFound {
		return map[string]*profile.UserProfile{}, 0, nil
	}
	if err != nil {
		c.WithField("err", err).Error("keyvalue.Get failed")
		return nil, 0, err
	}
	return decode(c, entry.Value), entry.Version, nil
}

func (im *profileImpl) SaveAll(c ctx.Ctx, profiles map[string]*profile.UserProfile, version int64) error {
	data, err := json.Marshal(envelope{Schema: currentSchema, Profiles: profiles})
	if err != nil {
		c.WithField("err", err).Error("marshal profiles failed")
		return err
	}
	if _, err := im.kv.Put(c, profile.StorageKey, data, version); err != nil {
		return err
	}
	return nil
}

func decode(c ctx.Ctx, data []byte) map[string]*profile.UserProfile {
	env := envelope{}
	if err := json.Unmarshal(data, &env); err == nil && env.Schema >= 1 {
		if env.Profiles == nil {
			return map[string]*profile.UserProfile{}
		}
		return dropNulls(env.Profiles)
	}

	// schema 0 persisted the bare address map
	profiles := map[string]*profile.UserProfile{}
	if err := json.Unmarshal(data, &profiles); err != nil {
		c.WithFields(log.Fields{"err": err, "key": profile.StorageKey}).Warn("corrupt profile payload, treating as empty")
		return map[string]*profile.UserProfile{}
	}
	return dropNulls(profiles)
}

// dropNulls removes JSON null entries so a damaged profile reads as absent
// and the lazy-create path replaces it.
func dropNulls(profiles map[string]*profile.UserProfile) map[string]*profile.UserProfile {
	for addr, p := range profiles {
		if p == nil {
			delete(profiles, addr)
		}
	}
	return profiles
}
