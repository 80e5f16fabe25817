// Package iavl archives benchmark runs in a versioned IAVL tree persisted
// on goleveldb. Every saved run commits one tree version.
package iavl

import (
	"encoding/json"
	"time"

	"github.com/cosmos/iavl"
	"github.com/cosmos/iavl/db"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tree_bench/common"
)

const runPrefix = "run/"

var ErrSessionNotFound = errors.New("session not found")

// Entry is one archived run.
type Entry struct {
	Session string          `json:"session"`
	Version int64           `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Results *common.Results `json:"results"`
}

type Archive struct {
	Path    string
	LevelDB *db.GoLevelDB
	Tree    *iavl.MutableTree
}

// Open loads the archive at path, creating it when missing.
func Open(path string) (*Archive, error) {
	if _, err := common.CreateDirectory(path); err != nil {
		return nil, err
	}
	leveldb, err := db.NewGoLevelDB("tree_bench", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create leveldb: %s", path)
	}
	tree := iavl.NewMutableTree(leveldb, 0, false, iavl.NewNopLogger())
	if _, err := tree.Load(); err != nil {
		leveldb.Close()
		return nil, errors.Wrapf(err, "failed to load tree: %s", path)
	}
	return &Archive{Path: path, LevelDB: leveldb, Tree: tree}, nil
}

func (a *Archive) Close() error {
	var err error
	if a.Tree != nil {
		err = a.Tree.Close()
		a.Tree = nil
	}
	if a.LevelDB != nil {
		if e := a.LevelDB.Close(); err == nil {
			err = e
		}
		a.LevelDB = nil
	}
	return errors.Wrap(err, "close archive")
}

// Save stores results under the session name and commits a new version. A
// session saved again is replaced in the new version.
func (a *Archive) Save(session string, results *common.Results) (int64, error) {
	if session == "" {
		return 0, errors.New("empty session name")
	}
	entry := Entry{
		Session: session,
		Version: a.Tree.Version() + 1,
		SavedAt: time.Now().UTC(),
		Results: results,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return 0, errors.Wrap(err, "encode results")
	}
	if _, err := a.Tree.Set(key(session), value); err != nil {
		return 0, errors.Wrapf(err, "failed to update iavl database: %s", session)
	}
	hash, version, err := a.Tree.SaveVersion()
	if err != nil {
		return 0, errors.Wrap(err, "failed to version iavl database")
	}
	zap.L().Info("results archived",
		zap.String("session", session),
		zap.Int64("version", version),
		zap.Binary("hash", hash))
	return version, nil
}

// Load returns the archived run of session.
func (a *Archive) Load(session string) (*Entry, error) {
	value, err := a.Tree.Get(key(session))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", session)
	}
	if value == nil {
		return nil, errors.Wrap(ErrSessionNotFound, session)
	}
	return decode(value)
}

// Sessions lists every archived run in session order. Results are
// decoded too.
func (a *Archive) Sessions() ([]*Entry, error) {
	it, err := a.Tree.Iterator([]byte(runPrefix), prefixEnd(runPrefix), true)
	if err != nil {
		return nil, errors.Wrap(err, "iterate archive")
	}
	defer it.Close()

	var entries []*Entry
	for ; it.Valid(); it.Next() {
		entry, err := decode(it.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", it.Key())
		}
		entries = append(entries, entry)
	}
	return entries, errors.Wrap(it.Error(), "iterate archive")
}

func key(session string) []byte {
	return []byte(runPrefix + session)
}

// prefixEnd is the first key past every key starting with prefix.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}

func decode(value []byte) (*Entry, error) {
	entry := &Entry{}
	if err := json.Unmarshal(value, entry); err != nil {
		return nil, errors.Wrap(err, "decode results")
	}
	return entry, nil
}
