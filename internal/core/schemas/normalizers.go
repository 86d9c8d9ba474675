package schemas

import "strings"

// NormalizeYouTubeHandle reduces channel links to the bare handle:
// "https://www.youtube.com/@AdaCodes" becomes "AdaCodes".
// Values that are not links are returned unchanged.
func NormalizeYouTubeHandle(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	i := strings.Index(lower, "youtube.com/")
	if i < 0 {
		return s
	}
	path := s[i+len("youtube.com/"):]
	if j := strings.IndexAny(path, "?#"); j >= 0 {
		path = path[:j]
	}
	path = strings.Trim(path, "/")
	for _, prefix := range []string{"c/", "user/", "channel/"} {
		if strings.HasPrefix(strings.ToLower(path), prefix) {
			path = path[len(prefix):]
			break
		}
	}
	if j := strings.Index(path, "/"); j >= 0 {
		path = path[:j]
	}
	path = strings.TrimPrefix(path, "@")
	if path == "" {
		return s
	}
	return path
}

// NormalizeWeChatID drops a "wxid:" style label some exports prepend.
func NormalizeWeChatID(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"wechat:", "weixin:", "wx:"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}
