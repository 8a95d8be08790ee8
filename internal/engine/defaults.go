package engine

import "moodsun/api/internal/store"

type defaultGroup struct {
	name       string
	visible    bool
	activities [][2]string // name, icon
}

var defaultGroups = []defaultGroup{
	{name: "Social", visible: true, activities: [][2]string{
		{"family", "family"}, {"friends", "friends"}, {"partner", "beloved"},
		{"stranger", "stranger"}, {"nobody", "none"},
	}},
	{name: "Emotions", visible: true, activities: [][2]string{
		{"excited", "excited"}, {"relaxed", "relaxed"}, {"proud", "proud"},
		{"hopeful", "hopeful"}, {"happy", "happy"}, {"enthusiastic", "enthusiastic"},
		{"butterflies", "butterflies"}, {"refreshed", "refreshed"}, {"gloomy", "gloomy"},
		{"lonely", "lonely"}, {"anxious", "anxious"}, {"sad", "sad"},
		{"angry", "angry"}, {"tired", "tired"}, {"annoyed", "annoyed"},
	}},
	{name: "Hobbies", visible: true, activities: [][2]string{
		{"movies & tv", "moviesAndTv"}, {"reading", "reading"}, {"gaming", "gaming"},
		{"exercise", "exercise"}, {"taking a walk", "takingAWalk"}, {"painting", "painting"},
		{"playing an instrument", "instrumentPlaying"}, {"crafts", "crafts"},
	}},
	{name: "Weather", activities: [][2]string{
		{"sunny", "sunny"}, {"rainy", "rainy"}, {"cloudy", "cloudy"},
		{"snowy", "snowy"}, {"windy", "windy"},
	}},
	{name: "Food", activities: [][2]string{
		{"healthy food", "healthyFood"}, {"junk food", "junkFood"}, {"home cooked", "homeCooked"},
		{"restaurant", "restaurant"}, {"delivery", "delivery"},
	}},
	{name: "Chores", activities: [][2]string{
		{"cleaning", "cleaning"}, {"laundry", "laundry"}, {"cooking", "cooking"},
		{"plant care", "plantCare"}, {"grocery shopping", "groceryShopping"},
	}},
	{name: "Self care", activities: [][2]string{
		{"haircut", "haircut"}, {"manicure", "manicure"}, {"skincare", "skincare"},
		{"makeup", "makeup"}, {"massage", "massage"},
	}},
	{name: "Events", activities: [][2]string{
		{"cinema", "cinema"}, {"amusement park", "amusementPark"}, {"shopping", "shopping"},
		{"picnic", "picnic"}, {"trip", "trip"},
	}},
}

// DefaultGroups is the group schema every new account starts with.
func DefaultGroups() []store.GroupView {
	out := make([]store.GroupView, 0, len(defaultGroups))
	for i, g := range defaultGroups {
		view := store.GroupView{Name: g.name, Visible: g.visible, Order: i}
		for _, a := range g.activities {
			view.Activities = append(view.Activities, store.Activity{Name: a[0], IconName: a[1]})
		}
		out = append(out, view)
	}
	return out
}
