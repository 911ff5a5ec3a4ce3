package mention_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teamline-chat/teamline/internal/mention"
	"github.com/teamline-chat/teamline/internal/models"
)

func demoDirectory() (uuid.UUID, []models.MentionCandidate) {
	me := uuid.New()
	return me, []models.MentionCandidate{
		{ID: uuid.New(), DisplayName: "Alice"},
		{ID: uuid.New(), DisplayName: "Albert"},
		{ID: uuid.New(), DisplayName: "Bob"},
	}
}

func TestQueryOpensOnlyInGroups(t *testing.T) {
	me, directory := demoDirectory()

	direct := mention.NewQuery(me, false, directory)
	direct.Update("hey @Al", 7)
	require.False(t, direct.IsOpen(), "mentions are disabled in direct chats")

	group := mention.NewQuery(me, true, directory)
	group.Update("hey @Al", 7)
	require.True(t, group.IsOpen())
	require.Len(t, group.Candidates(), 2)
}

func TestQueryClosesWhenNoCandidatesMatch(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)

	q.Update("hey @Al", 7)
	require.True(t, q.IsOpen())

	q.Update("hey @Alz", 8)
	require.False(t, q.IsOpen(), "empty filter result closes the popup")
}

func TestQueryKeyboardNavigationClamps(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)
	q.Update("@al", 3)
	require.True(t, q.IsOpen())
	require.Equal(t, 0, q.SelectedIndex())

	// up at the top stays put
	_, handled := q.HandleKey(mention.KeyUp)
	require.True(t, handled)
	require.Equal(t, 0, q.SelectedIndex())

	// down walks to the end and clamps there
	q.HandleKey(mention.KeyDown)
	require.Equal(t, 1, q.SelectedIndex())
	q.HandleKey(mention.KeyDown)
	require.Equal(t, 1, q.SelectedIndex(), "selection clamps at candidateCount-1")
}

func TestQuerySearchChangeResetsSelection(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)

	q.Update("@a", 2)
	q.HandleKey(mention.KeyDown)
	require.Equal(t, 1, q.SelectedIndex())

	q.Update("@al", 3)
	require.Equal(t, 0, q.SelectedIndex(), "changing searchText resets selectedIndex")
}

func TestQueryCommitViaEnter(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)

	text := "hi @Al"
	q.Update(text, 6)
	require.True(t, q.IsOpen())

	commit, handled := q.HandleKey(mention.KeyEnter)
	require.True(t, handled)
	require.NotNil(t, commit)
	require.Equal(t, "Alice", commit.DisplayName)

	newText, cursor := q.Commit(text, *commit)
	require.Equal(t, "hi @Alice ", newText)
	require.Equal(t, 10, cursor)
	require.False(t, q.IsOpen(), "commit discards the query state")
}

func TestQueryTabCommitsLikeEnter(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)
	q.Update("@bo", 3)

	commit, handled := q.HandleKey(mention.KeyTab)
	require.True(t, handled)
	require.Equal(t, "Bob", commit.DisplayName)
}

func TestQueryEscapeClosesWithoutCommitting(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)
	q.Update("hi @Al", 6)

	commit, handled := q.HandleKey(mention.KeyEscape)
	require.True(t, handled)
	require.Nil(t, commit)
	require.False(t, q.IsOpen())

	// the same trigger does not reopen the popup after escape
	q.Update("hi @Ali", 7)
	require.False(t, q.IsOpen())

	// a fresh trigger does
	q.Update("hi x @A", 7)
	require.True(t, q.IsOpen())
}

func TestQueryKeysPassThroughWhileClosed(t *testing.T) {
	me, directory := demoDirectory()
	q := mention.NewQuery(me, true, directory)
	q.Update("plain text", 10)

	_, handled := q.HandleKey(mention.KeyEnter)
	require.False(t, handled, "keys must reach the text area while the list is closed")
}
