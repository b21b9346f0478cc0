package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

type sqliteSuite struct {
	suite.Suite

	im keyvalue.Store
}

func TestSqliteSuite(t *testing.T) {
	suite.Run(t, new(sqliteSuite))
}

func (s *sqliteSuite) SetupTest() {
	im, err := Open(filepath.Join(s.T().TempDir(), "kv.db"))
	s.Require().NoError(err)
	s.im = im
}

func (s *sqliteSuite) TestGetMissing() {
	c := ctx.Background()
	_, err := s.im.Get(c, "nope")
	s.Equal(keyvalue.ErrNotFound, err)
}

func (s *sqliteSuite) TestPutGetRoundTrip() {
	c := ctx.Background()
	ver, err := s.im.Put(c, "k", []byte(`[1,2]`), 0)
	s.NoError(err)
	s.Equal(int64(1), ver)

	e, err := s.im.Get(c, "k")
	s.NoError(err)
	s.Equal([]byte(`[1,2]`), e.Value)
	s.Equal(int64(1), e.Version)
}

func (s *sqliteSuite) TestStalePutRejected() {
	c := ctx.Background()
	_, err := s.im.Put(c, "k", []byte(`a`), 0)
	s.NoError(err)
	_, err = s.im.Put(c, "k", []byte(`b`), 1)
	s.NoError(err)

	_, err = s.im.Put(c, "k", []byte(`c`), 1)
	s.Equal(domain.ErrConflict, err)

	e, err := s.im.Get(c, "k")
	s.NoError(err)
	s.Equal([]byte(`b`), e.Value)
}

func (s *sqliteSuite) TestCreateRequiresZero() {
	c := ctx.Background()
	_, err := s.im.Put(c, "k", []byte(`a`), 3)
	s.Equal(domain.ErrConflict, err)
}

func (s *sqliteSuite) TestDel() {
	c := ctx.Background()
	_, err := s.im.Put(c, "k", []byte(`a`), 0)
	s.NoError(err)
	s.NoError(s.im.Del(c, "k"))
	_, err = s.im.Get(c, "k")
	s.Equal(keyvalue.ErrNotFound, err)

	// fresh create after delete starts over at version 1
	ver, err := s.im.Put(c, "k", []byte(`b`), 0)
	s.NoError(err)
	s.Equal(int64(1), ver)
}
