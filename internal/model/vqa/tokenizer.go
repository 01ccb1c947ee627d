// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vqa

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer 问题编码与答案解码；normalizer、pre-tokenizer、WordPiece 词表与 decoder 均取自 tokenizer.json
type Tokenizer struct {
	tk    *tokenizer.Tokenizer
	clsID int64
	sepID int64
}

// LoadTokenizerFile 从本地 tokenizer.json 构建分词器
func LoadTokenizerFile(path string) (*Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	cls, ok := tk.TokenToId("[CLS]")
	if !ok {
		return nil, fmt.Errorf("vocabulary has no [CLS] token")
	}
	sep, ok := tk.TokenToId("[SEP]")
	if !ok {
		return nil, fmt.Errorf("vocabulary has no [SEP] token")
	}
	return &Tokenizer{tk: tk, clsID: int64(cls), sepID: int64(sep)}, nil
}

// Encode 将文本编码为 [CLS] ... [SEP]，maxLen > 1 时截断（保留 [SEP]）
func (t *Tokenizer) Encode(text string, maxLen int) ([]int64, error) {
	en, err := t.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}
	ids := make([]int64, 0, len(en.Ids)+2)
	ids = append(ids, t.clsID)
	for _, id := range en.Ids {
		ids = append(ids, int64(id))
	}
	if maxLen > 1 && len(ids)+1 > maxLen {
		ids = ids[:maxLen-1]
	}
	return append(ids, t.sepID), nil
}

// Decode 将 id 序列还原为文本；skipSpecial 时丢弃特殊 token
func (t *Tokenizer) Decode(ids []int64, skipSpecial bool) (string, error) {
	in := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := t.tk.IdToToken(int(id)); !ok {
			return "", fmt.Errorf("token id %d out of vocabulary", id)
		}
		in = append(in, int(id))
	}
	return strings.TrimSpace(t.tk.Decode(in, skipSpecial)), nil
}
