package snapshot_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/okian/footprint/internal/adapters/snapshot"
	"github.com/okian/footprint/internal/config"
	"github.com/okian/footprint/internal/domain/registry"
	"github.com/okian/footprint/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestFileStore(t *testing.T) {
	Convey("Given a file store in an empty directory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		store := snapshot.NewFileStore(dir, "footprint/models")

		Convey("Then loading reports a missing snapshot", func() {
			_, err := store.Load(ctx)
			So(errors.Is(err, registry.ErrSnapshotNotFound), ShouldBeTrue)
		})

		Convey("When a bundle is saved", func() {
			payload := bytes.Repeat([]byte(`{"weights":[0.5,0.25]}`), 64)
			So(store.Save(ctx, payload), ShouldBeNil)

			Convey("Then it is compressed on disk and loads back intact", func() {
				onDisk, err := os.ReadFile(filepath.Join(dir, "footprint", "models.snappy"))
				So(err, ShouldBeNil)
				So(len(onDisk), ShouldBeLessThan, len(payload))

				got, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, payload)
			})
		})

		Convey("When the file is not snappy data", func() {
			So(os.MkdirAll(filepath.Dir(store.Path()), 0o755), ShouldBeNil)
			So(os.WriteFile(store.Path(), []byte{0xff, 0xff, 0xff, 0xff, 0xff}, 0o644), ShouldBeNil)

			_, err := store.Load(ctx)
			So(errors.Is(err, snapshot.ErrCorrupt), ShouldBeTrue)
		})
	})
}

func TestS3Store(t *testing.T) {
	Convey("Given an S3 store over a fake bucket", t, func() {
		ctx := context.Background()
		api := &fakeS3{objects: map[string][]byte{}}
		store := snapshot.NewS3StoreWithClient(api, "models", "footprint/models")

		_, err := store.Load(ctx)
		So(errors.Is(err, registry.ErrSnapshotNotFound), ShouldBeTrue)

		So(store.Save(ctx, []byte("bundle")), ShouldBeNil)
		So(api.objects, ShouldContainKey, "models/footprint/models")

		got, err := store.Load(ctx)
		So(err, ShouldBeNil)
		So(string(got), ShouldEqual, "bundle")
	})
}

func TestRegistryRoundTrip(t *testing.T) {
	_ = logger.Init()

	Convey("Given a registry that persisted its weights", t, func() {
		ctx := context.Background()
		store := snapshot.NewFileStore(t.TempDir(), "models")

		first := registry.New(40, registry.WithSeed(5), registry.WithSnapshotStore(store))
		So(first.Init(ctx), ShouldBeNil)
		net1, err := first.Fingerprint(ctx)
		So(err, ShouldBeNil)

		Convey("Then a registry with another seed loads the same network", func() {
			second := registry.New(40, registry.WithSeed(99), registry.WithSnapshotStore(store))
			net2, err := second.Fingerprint(ctx)
			So(err, ShouldBeNil)

			in := make([]float64, 40)
			for i := range in {
				in[i] = float64(i) / 40
			}
			out1, err := net1.Forward(in)
			So(err, ShouldBeNil)
			out2, err := net2.Forward(in)
			So(err, ShouldBeNil)
			So(out2, ShouldResemble, out1)
		})

		Convey("Then a registry with another width rejects the snapshot", func() {
			narrow := registry.New(16, registry.WithSnapshotStore(store))
			err := narrow.Init(ctx)
			So(errors.Is(err, registry.ErrVectorSizeMismatch), ShouldBeTrue)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given snapshot backend settings", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		store, err := snapshot.Open(ctx, cfg)
		So(err, ShouldBeNil)
		So(store, ShouldBeNil)

		cfg.SnapshotBackend = snapshot.BackendFile
		cfg.SnapshotDir = t.TempDir()
		store, err = snapshot.Open(ctx, cfg)
		So(err, ShouldBeNil)
		So(store, ShouldHaveSameTypeAs, &snapshot.FileStore{})

		cfg.SnapshotBackend = "ftp"
		_, err = snapshot.Open(ctx, cfg)
		So(errors.Is(err, snapshot.ErrUnknownBackend), ShouldBeTrue)
	})
}
