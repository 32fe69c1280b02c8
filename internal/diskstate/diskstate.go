// Package diskstate implements a small bbolt-backed cache: the runtime
// manager's camera-to-pipeline bindings and the camera configs the camera
// handler auto-registered. The runtime and the camera handler only write to
// it; nothing in this module reads the cache back at startup.
package diskstate

import (
	"encoding/json"
	"fmt"
	"os"

	bbolt "go.etcd.io/bbolt"

	"github.com/synapse-vision/synapse-core/internal/config"
)

// Store is the crash-recovery cache contract.
type Store interface {
	// Bindings returns the last-known camera index -> pipeline index map.
	Bindings() (map[int]int, error)
	// PutBinding records cameraIndex's currently bound pipelineIndex.
	PutBinding(cameraIndex, pipelineIndex int) error

	// AutoRegisteredCameras returns every camera config the camera handler
	// auto-registered (as opposed to one present in the YAML file), keyed
	// by camera index.
	AutoRegisteredCameras() (map[int]config.CameraConfig, error)
	// PutAutoRegisteredCamera records cc as auto-registered at index.
	PutAutoRegisteredCamera(index int, cc config.CameraConfig) error

	Close() error
}

const (
	bucketBindings       = "bindings"
	bucketAutoRegistered = "auto_registered_cameras"
)

// BBolt is the bbolt-backed Store implementation.
type BBolt struct {
	db *bbolt.DB
}

// Open opens (creating if needed) a bbolt-backed Store at path.
func Open(path string, mode os.FileMode, options *bbolt.Options) (Store, error) {
	db, err := bbolt.Open(path, mode, options)
	if err != nil {
		return nil, fmt.Errorf("unable to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketBindings)); err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bucketBindings, err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketAutoRegistered)); err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bucketAutoRegistered, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create buckets: %w", err)
	}

	return &BBolt{db: db}, nil
}

func (b *BBolt) Close() error {
	return b.db.Close()
}

func (b *BBolt) Bindings() (map[int]int, error) {
	bindings := make(map[int]int)

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBindings))
		return bucket.ForEach(func(k, v []byte) error {
			var cameraIndex, pipelineIndex int
			if _, err := fmt.Sscanf(string(k), "%d", &cameraIndex); err != nil {
				return fmt.Errorf("couldn't decode binding key %q: %w", k, err)
			}
			if err := json.Unmarshal(v, &pipelineIndex); err != nil {
				return fmt.Errorf("couldn't decode binding value for camera %d: %w", cameraIndex, err)
			}
			bindings[cameraIndex] = pipelineIndex
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list bindings: %w", err)
	}

	return bindings, nil
}

func (b *BBolt) PutBinding(cameraIndex, pipelineIndex int) error {
	value, err := json.Marshal(pipelineIndex)
	if err != nil {
		return fmt.Errorf("unable to marshal pipeline index: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBindings))
		return bucket.Put([]byte(fmt.Sprintf("%d", cameraIndex)), value)
	})
	if err != nil {
		return fmt.Errorf("unable to put binding for camera %d: %w", cameraIndex, err)
	}

	return nil
}

func (b *BBolt) AutoRegisteredCameras() (map[int]config.CameraConfig, error) {
	cameras := make(map[int]config.CameraConfig)

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAutoRegistered))
		return bucket.ForEach(func(k, v []byte) error {
			var index int
			if _, err := fmt.Sscanf(string(k), "%d", &index); err != nil {
				return fmt.Errorf("couldn't decode camera index key %q: %w", k, err)
			}

			var cc config.CameraConfig
			if err := json.Unmarshal(v, &cc); err != nil {
				return fmt.Errorf("couldn't decode camera config for index %d: %w", index, err)
			}
			cc.Index = index
			cameras[index] = cc
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list auto-registered cameras: %w", err)
	}

	return cameras, nil
}

func (b *BBolt) PutAutoRegisteredCamera(index int, cc config.CameraConfig) error {
	value, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("unable to marshal camera config: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAutoRegistered))
		return bucket.Put([]byte(fmt.Sprintf("%d", index)), value)
	})
	if err != nil {
		return fmt.Errorf("unable to put auto-registered camera %d: %w", index, err)
	}

	return nil
}
