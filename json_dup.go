package treaty

import (
	"io"

	eng "github.com/reoring/treaty/internal/engine"
)

// DetectJSONDuplicateKeysBytes reports duplicate object keys in a JSON byte
// slice without validating against any schema. maxIssues caps the findings
// (negative means unlimited); malformed input surfaces as a parse_error
// issue.
func DetectJSONDuplicateKeysBytes(data []byte, strict Strictness, maxIssues int) Issues {
	return fromEngineIssues(eng.DetectDupBytes(data, toEngineDup(strict.OnDuplicateKey), maxIssues))
}

// DetectJSONDuplicateKeysReader is DetectJSONDuplicateKeysBytes for a
// reader. The reader is consumed fully.
func DetectJSONDuplicateKeysReader(r io.Reader, strict Strictness, maxIssues int) Issues {
	return fromEngineIssues(eng.DetectDupReader(r, toEngineDup(strict.OnDuplicateKey), maxIssues))
}

func fromEngineIssues(raw []eng.RawIssue) Issues {
	var iss Issues
	for _, ri := range raw {
		iss = AppendIssues(iss, Issue{Code: ri.Code, Path: ri.Path, Message: ri.Message})
	}
	return iss
}
