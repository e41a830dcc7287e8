package steps

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
)

// DockerAPI is the slice of the Docker SDK the image steps need. Tests
// substitute a mock.
type DockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	Close() error
}

// docker returns the daemon connection, creating one from the environment on
// first use.
func (r *Runner) docker() (DockerAPI, error) {
	if r.Docker != nil {
		return r.Docker, nil
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	r.Docker = cli
	return cli, nil
}

// runBuildDockerImage builds an image from the working directory.
//
// Arguments: image_name (required), tag, dockerfile, path.
// Outputs: image, image_name, tag.
func (r *Runner) runBuildDockerImage(ctx context.Context, args Args) (map[string]any, error) {
	imageName, err := args.Require("image_name")
	if err != nil {
		return nil, err
	}
	tag := args.String("tag", "latest")
	ref := imageRef(imageName, tag)

	contextDir := args.String("path", r.Dir)
	if contextDir == "" {
		contextDir = "."
	}

	buildContext, err := tarDirectory(contextDir)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	api, err := r.docker()
	if err != nil {
		return nil, err
	}

	resp, err := api.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: args.String("dockerfile", "Dockerfile"),
		Remove:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if err := drainDockerStream(resp.Body); err != nil {
		return nil, fmt.Errorf("build %s: %w", ref, err)
	}

	return map[string]any{
		"image":      ref,
		"image_name": imageName,
		"tag":        tag,
	}, nil
}

// runPushDockerImage pushes a previously built image.
//
// Arguments: image_name (required), tag, username, password.
// Outputs: image, image_name, tag.
func (r *Runner) runPushDockerImage(ctx context.Context, args Args) (map[string]any, error) {
	imageName, err := args.Require("image_name")
	if err != nil {
		return nil, err
	}
	tag := args.String("tag", "latest")
	ref := imageRef(imageName, tag)

	auth, err := encodePushAuth(args)
	if err != nil {
		return nil, err
	}

	api, err := r.docker()
	if err != nil {
		return nil, err
	}

	body, err := api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return nil, fmt.Errorf("push %s: %w", ref, err)
	}
	defer body.Close()

	if err := drainDockerStream(body); err != nil {
		return nil, fmt.Errorf("push %s: %w", ref, err)
	}

	return map[string]any{
		"image":      ref,
		"image_name": imageName,
		"tag":        tag,
	}, nil
}

// encodePushAuth builds the registry auth header from step credentials.
// Anonymous pushes send a bare config so the daemon does not prompt.
func encodePushAuth(args Args) (string, error) {
	authConfig := registry.AuthConfig{
		Username: args.String("username", ""),
		Password: args.String("password", ""),
	}

	encoded, err := registry.EncodeAuthConfig(authConfig)
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return encoded, nil
}

// dockerMessage is one line of the daemon's JSON progress stream.
type dockerMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Error string `json:"error"`
}

// drainDockerStream consumes a build or push progress stream and surfaces
// any error message the daemon reported.
func drainDockerStream(body io.Reader) error {
	dec := json.NewDecoder(body)

	for {
		var msg dockerMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read daemon response: %w", err)
		}

		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		if msg.ErrorDetail.Message != "" {
			return errors.New(msg.ErrorDetail.Message)
		}
	}
}

// tarDirectory packs a directory into an in-memory tar archive for use as a
// build context. The .git directory is excluded.
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("add %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// imageRef joins name and tag unless the name already carries a tag.
func imageRef(name, tag string) string {
	if strings.Contains(name[strings.LastIndex(name, "/")+1:], ":") {
		return name
	}
	return name + ":" + tag
}
