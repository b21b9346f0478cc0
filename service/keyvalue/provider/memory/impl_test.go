package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

type memorySuite struct {
	suite.Suite

	im keyvalue.Store
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(memorySuite))
}

func (s *memorySuite) SetupTest() {
	s.im = New()
}

func (s *memorySuite) TestGetMissing() {
	c := ctx.Background()
	_, err := s.im.Get(c, "nope")
	s.Equal(keyvalue.ErrNotFound, err)
}

func (s *memorySuite) TestPutGetRoundTrip() {
	c := ctx.Background()
	ver, err := s.im.Put(c, "k", []byte(`[1,2]`), 0)
	s.NoError(err)
	s.Equal(int64(1), ver)

	e, err := s.im.Get(c, "k")
	s.NoError(err)
	s.Equal([]byte(`[1,2]`), e.Value)
	s.Equal(int64(1), e.Version)
}

func (s *memorySuite) TestStalePutRejected() {
	c := ctx.Background()
	_, err := s.im.Put(c, "k", []byte(`a`), 0)
	s.NoError(err)
	_, err = s.im.Put(c, "k", []byte(`b`), 1)
	s.NoError(err)

	// writer still holding version 1 must lose
	_, err = s.im.Put(c, "k", []byte(`c`), 1)
	s.Equal(domain.ErrConflict, err)

	e, err := s.im.Get(c, "k")
	s.NoError(err)
	s.Equal([]byte(`b`), e.Value)
}

func (s *memorySuite) TestCreateRequiresZero() {
	c := ctx.Background()
	_, err := s.im.Put(c, "k", []byte(`a`), 3)
	s.Equal(domain.ErrConflict, err)
}

func (s *memorySuite) TestDel() {
	c := ctx.Background()
	_, err := s.im.Put(c, "k", []byte(`a`), 0)
	s.NoError(err)
	s.NoError(s.im.Del(c, "k"))
	_, err = s.im.Get(c, "k")
	s.Equal(keyvalue.ErrNotFound, err)
}
