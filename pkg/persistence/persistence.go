package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var persistLog = logrus.WithField("component", "persistence")

// Service 持久化服务接口
type Service interface {
	NewStore(name string, tags ...string) Store
}

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
	Path() string
}

// ErrNotExists 表示数据不存在
var ErrNotExists = fmt.Errorf("persistence data not exists")

// JSONFileService 基于 JSON 文件的持久化服务（每个 Store 一个文件）
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件持久化服务
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{
		baseDir: baseDir,
	}
}

// NewStore 创建新的存储，文件名为 name[_tag...].json
func (s *JSONFileService) NewStore(name string, tags ...string) Store {
	key := strings.Join(append([]string{name}, tags...), "_")
	return &JSONFileStore{
		service: s,
		key:     key,
	}
}

// JSONFileStore JSON 文件存储实现
type JSONFileStore struct {
	service *JSONFileService
	key     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Path 文件路径（key 做文件名安全化）
func (s *JSONFileStore) Path() string {
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.service.baseDir, safe+".json")
}

// Save 原子写入（先写临时文件再 rename）
func (s *JSONFileStore) Save(data interface{}) error {
	persistLog.Debugf("Save: key=%s", s.key)
	if err := os.MkdirAll(s.service.baseDir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load 加载数据
func (s *JSONFileStore) Load(data interface{}) error {
	persistLog.Debugf("Load: key=%s", s.key)
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}
