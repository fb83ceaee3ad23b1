package file

import (
	"io"
	"os"
)

// FileOperations defines methods for reading from and writing to files.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	ReadFileRaw(filePath string) ([]byte, error)
	WriteFileRaw(filePath string, data []byte) error
	WriteFileAtomic(filePath string, data []byte) error
	EnsureDir(dirPath string) error
}

// FileService implements the FileOperations interface using standard file operations.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists checks if the file exists and returns boolean and error
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}

	// checking err == nil because of permission related error
	return err == nil, err
}

// ReadFileRaw reads the contents of the file at filePath and returns it as a byte array.
func (fs *FileService) ReadFileRaw(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// WriteFileRaw writes the data byte array to the file at filePath.
func (fs *FileService) WriteFileRaw(filePath string, data []byte) error {
	return os.WriteFile(filePath, data, 0600)
}

// WriteFileAtomic writes data to a temporary file next to filePath and
// renames it into place, so a crash mid-write never corrupts a
// previously committed file.
func (fs *FileService) WriteFileAtomic(filePath string, data []byte) error {
	tempFile := filePath + ".tmp"

	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		os.Remove(tempFile) // Clean up partial file
		return err
	}

	return os.Rename(tempFile, filePath) // Atomic file update
}

// EnsureDir creates the directory and any missing parents.
func (fs *FileService) EnsureDir(dirPath string) error {
	return os.MkdirAll(dirPath, 0700)
}
