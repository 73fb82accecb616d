package forum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarbay/rollcall/pkg/types"
)

func TestClassifyCheckin(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   types.CheckinState
	}{
		{
			name: "red button means eligible",
			source: `<div class="ddpc_sign_btna">
				<a class="ddpc_sign_btn ddpc_sign_btn_red" href="plugin.php?id=dd_sign&ac=sign">马上签到</a>
			</div>`,
			want: types.CheckinEligible,
		},
		{
			name: "grey button with signed label means already done",
			source: `<div class="ddpc_sign_btna">
				<a href="#rank">查看排行</a>
				<a class="ddpc_sign_btn ddpc_sign_btn_grey">今日已签到</a>
			</div>`,
			want: types.CheckinAlreadyDone,
		},
		{
			name: "grey button without the signed label stays unknown",
			source: `<div class="ddpc_sign_btna">
				<a class="ddpc_sign_btn_grey">签到统计</a>
			</div>`,
			want: types.CheckinUnknown,
		},
		{
			name:   "page without the sign block stays unknown",
			source: `<div id="wp"><p>站点维护中</p></div>`,
			want:   types.CheckinUnknown,
		},
		{
			name:   "empty source stays unknown",
			source: "",
			want:   types.CheckinUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCheckin(tt.source))
		})
	}
}

func TestSolveMathChallenge(t *testing.T) {
	tests := []struct {
		question string
		want     int
		wantErr  bool
	}{
		{question: "3 + 4 = ?", want: 7},
		{question: "12+30 = ?", want: 42},
		{question: "10 - 7 = ?", want: 3},
		{question: "3 - 8 = ?", want: -5},
		{question: "6 * 7 = ?", want: 42},
		{question: "9 / 2 = ?", want: 4},
		{question: "请计算 15 + 27 的结果", want: 42},
		{question: "5 / 0 = ?", wantErr: true},
		{question: "今天天气不错", wantErr: true},
		{question: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got, err := solveMathChallenge(tt.question)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
