package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cuemby/burrow/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketNodes     = []byte("nodes")
	bucketTargets   = []byte("targets")
	bucketProcesses = []byte("processes")
	bucketCosts     = []byte("costs")
	bucketAccount   = []byte("account")
	bucketLogPort   = []byte("logport")

	keyAccount = []byte("account")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "burrow.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketNodes,
			bucketTargets,
			bucketProcesses,
			bucketCosts,
			bucketAccount,
			bucketLogPort,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// Node operations
func (s *BoltStore) CreateNode(node *types.NodeRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketNodes, node.ID, node)
	})
}

func (s *BoltStore) GetNode(id string) (*types.NodeRecord, error) {
	var node types.NodeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("node %s: %w", id, types.ErrNotFound)
		}
		return json.Unmarshal(data, &node)
	})
	return &node, err
}

func (s *BoltStore) ListNodes() ([]*types.NodeRecord, error) {
	var nodes []*types.NodeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node types.NodeRecord
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(node *types.NodeRecord) error {
	return s.CreateNode(node) // Same as create (upsert)
}

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(id))
	})
}

// Target operations
func (s *BoltStore) CreateTarget(target *types.Target) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketTargets, target.ID, target)
	})
}

func (s *BoltStore) GetTarget(id string) (*types.Target, error) {
	var target types.Target
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTargets).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("target %s: %w", id, types.ErrNotFound)
		}
		return json.Unmarshal(data, &target)
	})
	return &target, err
}

func (s *BoltStore) ListTargets() ([]*types.Target, error) {
	var targets []*types.Target
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTargets).ForEach(func(k, v []byte) error {
			var target types.Target
			if err := json.Unmarshal(v, &target); err != nil {
				return err
			}
			targets = append(targets, &target)
			return nil
		})
	})
	return targets, err
}

func (s *BoltStore) UpdateTarget(target *types.Target) error {
	return s.CreateTarget(target)
}

// Process operations
func (s *BoltStore) CreateProcess(proc *ProcessRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketProcesses, proc.ID, proc)
	})
}

// ListProcesses returns every process, oldest first
func (s *BoltStore) ListProcesses() ([]*ProcessRecord, error) {
	var procs []*ProcessRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProcesses).ForEach(func(k, v []byte) error {
			var proc ProcessRecord
			if err := json.Unmarshal(v, &proc); err != nil {
				return err
			}
			procs = append(procs, &proc)
			return nil
		})
	})
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].Process.StartedAt.Before(procs[j].Process.StartedAt)
	})
	return procs, err
}

func (s *BoltStore) ListProcessesByNode(nodeID string) ([]*ProcessRecord, error) {
	procs, err := s.ListProcesses()
	if err != nil {
		return nil, err
	}

	var filtered []*ProcessRecord
	for _, proc := range procs {
		if proc.NodeID == nodeID {
			filtered = append(filtered, proc)
		}
	}
	return filtered, nil
}

func (s *BoltStore) DeleteProcess(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProcesses).Delete([]byte(id))
	})
}

// Cost operations
func (s *BoltStore) SetCost(op string, cost float64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketCosts, op, cost)
	})
}

func (s *BoltStore) GetCost(op string) (float64, error) {
	var cost float64
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCosts).Get([]byte(op))
		if data == nil {
			return fmt.Errorf("operation %s: %w", op, types.ErrNotFound)
		}
		return json.Unmarshal(data, &cost)
	})
	return cost, err
}

// Account operations
func (s *BoltStore) GetAccount() (*types.Account, error) {
	var account types.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAccount).Get(keyAccount)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &account)
	})
	return &account, err
}

func (s *BoltStore) SaveAccount(account *types.Account) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketAccount, string(keyAccount), account)
	})
}

// Log port operations

// AppendLog queues a line; keys are big-endian sequence numbers so
// iteration returns lines in append order.
func (s *BoltStore) AppendLog(line []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogPort)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, line)
	})
}

// DrainLog removes and returns every queued line
func (s *BoltStore) DrainLog() ([][]byte, error) {
	var lines [][]byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogPort)
		var keys [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			line := make([]byte, len(v))
			copy(line, v)
			lines = append(lines, line)
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return lines, err
}
