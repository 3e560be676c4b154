package recorder

// maxSyncSearch bounds how far into a recording a frame sync is looked for.
const maxSyncSearch = 8192

// findMP3FrameSync returns the position of the first MP3 frame sync word, an
// 0xFF byte followed by a byte with the top three bits set, or -1.
func findMP3FrameSync(data []byte) int {
	for i := 0; i < len(data)-1; i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

// alignMP3 drops the partial frame a mid-stream capture starts with. Data
// without a sync word near the start is returned unchanged.
func alignMP3(data []byte) []byte {
	head := data
	if len(head) > maxSyncSearch {
		head = head[:maxSyncSearch]
	}

	if pos := findMP3FrameSync(head); pos > 0 {
		return data[pos:]
	}
	return data
}
