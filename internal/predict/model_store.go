package predict

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ModelStore はユーザーごとのモデルを保存・読み込みするインターフェース。
type ModelStore interface {
	// Save はモデルを保存する。既存のモデルは丸ごと置き換える。
	Save(ctx context.Context, userID string, m *Model) error
	// Load はモデルを読み込む。モデルがない場合は nil, nil を返す。
	Load(ctx context.Context, userID string) (*Model, error)
}

// FileModelStore はディレクトリ配下に1ユーザー1ファイルでモデルを保存する。
// 書き込みは同じディレクトリの一時ファイルに書いてからリネームするため、
// 読み手が書きかけのファイルを見ることはない。
type FileModelStore struct {
	dir string
}

// コンパイル時にインターフェースの実装を検証する。
var _ ModelStore = (*FileModelStore)(nil)

// NewFileModelStore はFileModelStoreを生成する。
func NewFileModelStore(dir string) *FileModelStore {
	return &FileModelStore{dir: dir}
}

// Path はユーザーのモデルファイルのパスを返す。
// ユーザーIDは任意の文字列なので16進にしてファイル名に使う。
func (s *FileModelStore) Path(userID string) string {
	return filepath.Join(s.dir, "user_"+hex.EncodeToString([]byte(userID))+".model")
}

// Save はモデルを一時ファイルに書き出し、アトミックにリネームする。
func (s *FileModelStore) Save(ctx context.Context, userID string, m *Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// リネーム成功後は存在しないので失敗は無視する
		_ = os.Remove(tmpName)
	}()

	if err := json.NewEncoder(tmp).Encode(m); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path(userID)); err != nil {
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	return nil
}

// Load はモデルファイルを読み込む。
func (s *FileModelStore) Load(ctx context.Context, userID string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model file: %w", err)
	}
	return &m, nil
}
