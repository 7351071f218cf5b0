package filetransfer

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/go-errors/errors"
)

// RunTests pushes a small tree through the live session and pulls it back,
// checking that everything round-trips: plain contents, a target that needs
// intermediate directories, the executable bit, a symlink's exact target.
// It runs against whatever host the session is connected to, using
// throwaway directories on both sides.
func RunTests(client *FileClient) error {
	localDir, err := os.MkdirTemp("", "file-transfer-test-")
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer os.RemoveAll(localDir)
	remoteDir := "file_transfer_remote_test_dir"

	if err := client.Rmdir(remoteDir); err != nil {
		return err
	}
	if err := client.Mkdir(remoteDir); err != nil {
		return err
	}
	defer func() {
		_ = client.Rmdir(remoteDir)
	}()

	testData := make([]byte, 0, 128*1024)
	for i := 0; i < 65536; i++ {
		testData = append(testData, byte(i/256), byte(i%256))
	}

	checks := []struct {
		name string
		run  func() error
	}{
		{"send and recv a file", func() error {
			return checkFileRoundTrip(client, localDir, remoteDir, "plain", testData, 0o644)
		}},
		{"send and recv into a missing directory", func() error {
			return checkFileRoundTrip(client, localDir, filepath.Join(remoteDir, "dir1"), "nested", testData, 0o644)
		}},
		{"executable bit survives", func() error {
			return checkFileRoundTrip(client, localDir, remoteDir, "exe", []byte("#!/bin/sh\necho hi\n"), 0o755)
		}},
		{"symlink target survives", func() error {
			return checkLinkRoundTrip(client, localDir, remoteDir)
		}},
		{"directory tree round-trips", func() error {
			return checkDirRoundTrip(client, localDir, remoteDir, testData)
		}},
	}
	for _, check := range checks {
		if err := check.run(); err != nil {
			return errors.WrapPrefix(err, check.name, 0)
		}
	}
	return nil
}

func checkFileRoundTrip(client *FileClient, localDir, remoteDir, name string, contents []byte, mode os.FileMode) error {
	sent := filepath.Join(localDir, name)
	if err := os.WriteFile(sent, contents, mode); err != nil {
		return errors.Wrap(err, 0)
	}
	remote := filepath.Join(remoteDir, name)
	if err := client.SendFile(sent, remote); err != nil {
		return err
	}
	received := filepath.Join(localDir, name+".back")
	if err := client.RecvFile(remote, received); err != nil {
		return err
	}
	got, err := os.ReadFile(received)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if !bytes.Equal(got, contents) {
		return errors.Errorf("contents of %s changed in transit", name)
	}
	sentInfo, err := os.Stat(sent)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	gotInfo, err := os.Stat(received)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if (sentInfo.Mode().Perm()&0o111 != 0) != (gotInfo.Mode().Perm()&0o111 != 0) {
		return errors.Errorf("executable bit of %s changed in transit", name)
	}
	return nil
}

func checkLinkRoundTrip(client *FileClient, localDir, remoteDir string) error {
	link := filepath.Join(localDir, "lnk")
	if err := os.Symlink("plain", link); err != nil {
		return errors.Wrap(err, 0)
	}
	remote := filepath.Join(remoteDir, "lnk")
	if err := client.SendLink(link, remote); err != nil {
		return err
	}
	received := filepath.Join(localDir, "lnk.back")
	if err := client.RecvLink(remote, received); err != nil {
		return err
	}
	target, err := os.Readlink(received)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if target != "plain" {
		return errors.Errorf("link target changed in transit: %q", target)
	}
	return nil
}

func checkDirRoundTrip(client *FileClient, localDir, remoteDir string, testData []byte) error {
	tree := filepath.Join(localDir, "tree")
	if err := os.MkdirAll(filepath.Join(tree, "sub"), 0o755); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := os.WriteFile(filepath.Join(tree, "f1"), testData, 0o644); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := os.Symlink("f1", filepath.Join(tree, "lnk")); err != nil {
		return errors.Wrap(err, 0)
	}
	remoteTree := filepath.Join(remoteDir, "tree")
	if err := client.SendDir(tree, remoteTree); err != nil {
		return err
	}
	back := filepath.Join(localDir, "tree.back")
	if err := client.RecvDir(remoteTree, back); err != nil {
		return err
	}
	got, err := os.ReadFile(filepath.Join(back, "f1"))
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if !bytes.Equal(got, testData) {
		return errors.Errorf("tree file changed in transit")
	}
	if target, err := os.Readlink(filepath.Join(back, "lnk")); err != nil || target != "f1" {
		return errors.Errorf("tree link changed in transit")
	}
	if kind, err := os.Stat(filepath.Join(back, "sub")); err != nil || !kind.IsDir() {
		return errors.Errorf("tree subdirectory missing after transit")
	}
	return nil
}
